package compfilter

import "go.uber.org/zap"

type clientConfig struct {
	datasetPath string
	delimiter   rune
	encoding    string
	regionsFile string
	customDir   string
	codesDir    string
	logger      *zap.Logger
}

// Option configures the Client.
type Option func(*clientConfig)

// WithDataset sets the dataset file. Required.
func WithDataset(path string) Option {
	return func(c *clientConfig) { c.datasetPath = path }
}

// WithDelimiter sets the dataset field separator. Defaults to ','.
func WithDelimiter(d rune) Option {
	return func(c *clientConfig) { c.delimiter = d }
}

// WithEncoding sets the dataset encoding: "utf-8" (default) or "latin-1".
func WithEncoding(enc string) Option {
	return func(c *clientConfig) { c.encoding = enc }
}

// WithRegions sets the builtin region GeoJSON file and the directory for
// uploaded areas.
func WithRegions(regionsFile, customDir string) Option {
	return func(c *clientConfig) {
		c.regionsFile = regionsFile
		c.customDir = customDir
	}
}

// WithCodesDir sets the code-list storage directory.
func WithCodesDir(dir string) Option {
	return func(c *clientConfig) { c.codesDir = dir }
}

// WithLogger attaches a logger. Defaults to no logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
