package plot

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/StudioSol/set"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
	"github.com/tesius/trailing-stop-visualizer/pkg/metric"
)

// Static assets embedded in the binary
var (
	//go:embed assets
	staticFiles embed.FS
)

const defaultRecentTickers = 10

// Chart serves the analysis API and the chart page that renders it
type Chart struct {
	sync.Mutex
	port          int
	debug         bool
	analyzer      Analyzer
	indicators    []Indicator
	recentTickers *set.LinkedHashSetString
	scriptContent string
	indexHTML     *template.Template
	log           logger.Logger
}

// Option defines a function type for configuring a Chart instance
type Option func(*Chart)

// WithPort sets the HTTP server port
func WithPort(port int) Option {
	return func(chart *Chart) {
		chart.port = port
	}
}

// WithDebug enables debug mode (disables minification)
func WithDebug() Option {
	return func(chart *Chart) {
		chart.debug = true
	}
}

// WithIndicators adds overlay indicators to the chart response
func WithIndicators(indicators ...Indicator) Option {
	return func(chart *Chart) {
		chart.indicators = indicators
	}
}

// NewChart creates a new chart instance with the provided options
func NewChart(analyzer Analyzer, log logger.Logger, options ...Option) (*Chart, error) {
	chart := &Chart{
		port:          8080,
		analyzer:      analyzer,
		log:           log,
		recentTickers: set.NewLinkedHashSetString(),
	}

	// Apply all options
	for _, option := range options {
		option(chart)
	}

	// Parse chart HTML template
	var err error
	chart.indexHTML, err = template.ParseFS(staticFiles, "assets/chart.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart template: %w", err)
	}

	// Read and transpile chart JavaScript
	chartJS, err := staticFiles.ReadFile("assets/chart.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read chart.js: %w", err)
	}

	transpileChartJS := api.Transform(string(chartJS), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifySyntax:      !chart.debug,
		MinifyIdentifiers: !chart.debug,
		MinifyWhitespace:  !chart.debug,
	})

	if len(transpileChartJS.Errors) > 0 {
		return nil, fmt.Errorf("chart script failed with: %v", transpileChartJS.Errors)
	}

	chart.scriptContent = string(transpileChartJS.Code)

	return chart, nil
}

// RegisterHandlers registers all necessary handlers on the HTTP server
func (c *Chart) RegisterHandlers(server HTTPServer) {
	server.RegisterFileServer("/assets/", http.FS(staticFiles))

	server.RegisterHandler("/assets/chart.js", c.handleScript)
	server.RegisterHandler("/analyze", c.handleAnalyze)
	server.RegisterHandler("/health", c.handleHealth)
	server.RegisterHandler("/metrics", metric.Handler().ServeHTTP)
	server.RegisterHandler("/", c.handleIndex)
}

// Start registers the handlers and serves until the listener fails
func (c *Chart) Start(server HTTPServer) error {
	c.RegisterHandlers(server)

	c.log.Infof("chart available at http://localhost:%d", c.port)
	return server.Start(c.port)
}

// rememberTicker records a successfully analyzed ticker for the index
// page dropdown, keeping insertion order and a bounded size.
func (c *Chart) rememberTicker(ticker string) {
	c.Lock()
	defer c.Unlock()

	c.recentTickers.Add(ticker)
	if c.recentTickers.Length() > defaultRecentTickers {
		tickers := drain(c.recentTickers)
		c.recentTickers = set.NewLinkedHashSetString(tickers[len(tickers)-defaultRecentTickers:]...)
	}
}

func (c *Chart) recent() []string {
	c.Lock()
	defer c.Unlock()

	return drain(c.recentTickers)
}

func drain(s *set.LinkedHashSetString) []string {
	tickers := make([]string, 0, s.Length())
	for ticker := range s.Iter() {
		tickers = append(tickers, ticker)
	}
	return tickers
}
