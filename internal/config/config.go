package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/user/stm_scan_go/internal/analysis"
	"github.com/user/stm_scan_go/internal/parser"
	"github.com/user/stm_scan_go/internal/render"
	"github.com/user/stm_scan_go/internal/scan"
	"github.com/user/stm_scan_go/internal/storage"
)

// EnvPrefix prefixes every environment variable, e.g. STM_COLORMAP.
const EnvPrefix = "STM"

// Flag and config keys.
const (
	KeyOutput             = "output"
	KeyFormat             = "format"
	KeyRows               = "rows"
	KeyCols               = "cols"
	KeyOrder              = "order"
	KeyADCCodes           = "adc-codes"
	KeyColormap           = "colormap"
	KeyNormalization      = "normalization"
	KeyMin                = "min"
	KeyMax                = "max"
	KeyOrigin             = "origin"
	KeyScale              = "scale"
	KeyAnnotate           = "annotate"
	KeyReport             = "report"
	KeyPreview            = "preview"
	KeyPreviewWidth       = "preview-width"
	KeyZoom               = "zoom"
	KeyDownsample         = "downsample"
	KeyStabilityThreshold = "stability-threshold"
	KeyConfig             = "config"
	KeyVerbose            = "verbose"

	KeyS3Endpoint  = "s3.endpoint"
	KeyS3Region    = "s3.region"
	KeyS3AccessKey = "s3.access-key"
	KeyS3SecretKey = "s3.secret-key"
)

// Config holds everything one render run needs.
type Config struct {
	Output             string
	Format             string
	Rows               int
	Cols               int
	Order              string
	ADCCodes           bool
	Colormap           string
	Normalization      string
	Min                float64
	Max                float64
	Origin             string
	Scale              int
	Annotate           bool
	Report             string
	Preview            bool
	PreviewWidth       int
	Zoom               int
	Downsample         int
	StabilityThreshold float64
	Verbose            bool
	S3                 storage.S3Config
}

// NewFlagSet declares the command line flags. Defaults here are the
// lowest-precedence configuration layer.
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SortFlags = false

	flags.StringP(KeyOutput, "o", "", `image destination: path, s3://bucket/key or "-" for stdout (default <transcript>.png)`)
	flags.StringP(KeyFormat, "f", string(parser.FormatAuto), "transcript format: auto|protocol|triples|list|flat")
	flags.Int(KeyRows, 0, "grid rows for flat/triples input")
	flags.Int(KeyCols, 0, "grid columns for flat/triples input")
	flags.String(KeyOrder, scan.RowMajor.String(), "sample order: row-major|boustrophedon")
	flags.Bool(KeyADCCodes, false, "values are raw 16-bit ADC codes")
	flags.StringP(KeyColormap, "c", render.Grayscale, "colormap: "+strings.Join(render.ColormapNames(), "|"))
	flags.StringP(KeyNormalization, "n", string(render.NormLinear), "normalization: linear|fixed")
	flags.Float64(KeyMin, render.DefaultFixedMin, "lower bound for fixed normalization")
	flags.Float64(KeyMax, render.DefaultFixedMax, "upper bound for fixed normalization")
	flags.String(KeyOrigin, string(render.OriginUpper), "where row 0 is drawn: upper|lower")
	flags.Int(KeyScale, 1, "integer pixel upscale")
	flags.Bool(KeyAnnotate, false, "write a heatmap plot with axes and colour bar instead of a bare raster")
	flags.String(KeyReport, "", "PDF report destination")
	flags.Bool(KeyPreview, false, "print a terminal preview")
	flags.Int(KeyPreviewWidth, 80, "terminal preview width in columns")
	flags.Int(KeyZoom, 0, "scan zoom factor, checked against the grid size")
	flags.Int(KeyDownsample, 0, "scan downsampling factor, checked against the grid size")
	flags.Float64(KeyStabilityThreshold, analysis.DefaultStabilityThreshold, "Z-stability standard deviation threshold")
	flags.String(KeyConfig, "", "optional config file (yaml, toml, json)")
	flags.BoolP(KeyVerbose, "v", false, "debug logging")
	return flags
}

// Load merges flags, STM_* environment variables and the optional config
// file. Explicit flags win over the environment, which wins over the file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyS3Endpoint, "")
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyS3AccessKey, "")
	v.SetDefault(KeyS3SecretKey, "")

	if err := v.BindPFlags(flags); err != nil {
		return nil, scan.Malformedf("bind flags: %v", err)
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				return nil, scan.IOErrorf("read config %s: %v", path, err)
			}
			return nil, scan.Malformedf("config %s: %v", path, err)
		}
	}

	cfg := &Config{
		Output:             v.GetString(KeyOutput),
		Format:             v.GetString(KeyFormat),
		Rows:               v.GetInt(KeyRows),
		Cols:               v.GetInt(KeyCols),
		Order:              v.GetString(KeyOrder),
		ADCCodes:           v.GetBool(KeyADCCodes),
		Colormap:           v.GetString(KeyColormap),
		Normalization:      v.GetString(KeyNormalization),
		Min:                v.GetFloat64(KeyMin),
		Max:                v.GetFloat64(KeyMax),
		Origin:             v.GetString(KeyOrigin),
		Scale:              v.GetInt(KeyScale),
		Annotate:           v.GetBool(KeyAnnotate),
		Report:             v.GetString(KeyReport),
		Preview:            v.GetBool(KeyPreview),
		PreviewWidth:       v.GetInt(KeyPreviewWidth),
		Zoom:               v.GetInt(KeyZoom),
		Downsample:         v.GetInt(KeyDownsample),
		StabilityThreshold: v.GetFloat64(KeyStabilityThreshold),
		Verbose:            v.GetBool(KeyVerbose),
		S3: storage.S3Config{
			Endpoint:  v.GetString(KeyS3Endpoint),
			Region:    v.GetString(KeyS3Region),
			AccessKey: v.GetString(KeyS3AccessKey),
			SecretKey: v.GetString(KeyS3SecretKey),
		},
	}
	return cfg, nil
}

// ParserOptions converts the transcript settings.
func (c *Config) ParserOptions() (parser.Options, error) {
	format, err := parser.ParseFormat(c.Format)
	if err != nil {
		return parser.Options{}, err
	}
	order, err := scan.ParseOrder(c.Order)
	if err != nil {
		return parser.Options{}, err
	}
	if c.Rows < 0 || c.Cols < 0 {
		return parser.Options{}, scan.Malformedf("rows %d and cols %d must not be negative", c.Rows, c.Cols)
	}
	return parser.Options{
		Format:   format,
		Rows:     c.Rows,
		Cols:     c.Cols,
		Order:    order,
		ADCCodes: c.ADCCodes,
	}, nil
}

// RenderConfig converts and validates the rendering settings.
func (c *Config) RenderConfig() (render.Config, error) {
	norm, err := render.ParseNormalization(c.Normalization)
	if err != nil {
		return render.Config{}, err
	}
	origin, err := render.ParseOrigin(c.Origin)
	if err != nil {
		return render.Config{}, err
	}
	rc := render.Config{
		Colormap:      c.Colormap,
		Normalization: norm,
		FixedMin:      c.Min,
		FixedMax:      c.Max,
		Origin:        origin,
	}
	if err := rc.Validate(); err != nil {
		return render.Config{}, err
	}
	if c.Scale < 1 {
		return render.Config{}, scan.Malformedf("scale %d must be at least 1", c.Scale)
	}
	return rc, nil
}

// Geometry returns the scan geometry, zero when neither factor was given.
func (c *Config) Geometry() scan.Geometry {
	return scan.Geometry{Zoom: c.Zoom, Downsample: c.Downsample}
}
