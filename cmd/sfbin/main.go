package main

import (
	"fmt"
	"os"

	"github.com/sfbin/sfbin"
	"github.com/sfbin/sfbin/internal/config"
	"github.com/sfbin/sfbin/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config" env:"SFBIN_CONFIG" description:"Path to YAML file with encoding defaults"`

	Encode  EncodeCmd  `command:"encode"  description:"Encode GeoJSON to sfbin"`
	Decode  DecodeCmd  `command:"decode"  description:"Decode sfbin to GeoJSON"`
	Compare CompareCmd `command:"compare" description:"Compare encoded sizes against GeoJSON and FlatGeobuf"`
}

var opts Options

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		opts.Logger.Setup()
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// encodingOptions merges command flags, the optional config file and the
// built-in defaults, in that order of precedence.
func encodingOptions(variant string, scale float64, schema string) (*sfbin.Options, error) {
	cfg := &config.Config{}
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	o := sfbin.DefaultOptions()

	if variant == "" {
		variant = cfg.Variant
	}
	switch variant {
	case "", "v7":
		o.Variant = sfbin.VariantV7
	case "v4":
		o.Variant = sfbin.VariantV4
	default:
		return nil, fmt.Errorf("unknown variant %q (want v4 or v7)", variant)
	}

	if scale == 0 {
		scale = cfg.Scale
	}
	if scale != 0 {
		o.Scale = scale
	}

	if schema == "" {
		schema = cfg.Schema
	}
	switch schema {
	case "", "auto":
		o.Schema = sfbin.SchemaAuto
	case "static":
		o.Schema = sfbin.SchemaStatic
	case "dynamic":
		o.Schema = sfbin.SchemaDynamic
	default:
		return nil, fmt.Errorf("unknown schema mode %q (want static, dynamic or auto)", schema)
	}

	return o, nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EncodeCmd encodes a GeoJSON file into an sfbin stream.
type EncodeCmd struct {
	Input   string  `short:"i" long:"input"  required:"true" description:"Input GeoJSON file"`
	Output  string  `short:"o" long:"output" description:"Output file (default: stdout)"`
	Variant string  `long:"variant" description:"Coordinate encoding, v4 or v7 (default: v7)"`
	Scale   float64 `long:"scale"   description:"Quantization scale for v7 (default: 1e-7)"`
	Schema  string  `long:"schema"  description:"Attribute schema mode: static, dynamic or auto (default: auto)"`
}

// Execute runs the encode command.
func (c *EncodeCmd) Execute(_ []string) error {
	o, err := encodingOptions(c.Variant, c.Scale, c.Schema)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid encoding options")
	}

	raw, err := os.ReadFile(c.Input)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.Input).Msg("Failed to read input")
	}

	fc, err := sfbin.FromGeoJSON(raw)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.Input).Msg("Failed to parse GeoJSON")
	}

	data, err := sfbin.Marshal(fc, o)
	if err != nil {
		log.Fatal().Err(err).Msg("Encoding failed")
	}

	if err := writeOutput(c.Output, data); err != nil {
		log.Fatal().Err(err).Str("path", c.Output).Msg("Failed to write output")
	}

	log.Info().
		Str("variant", o.Variant.String()).
		Int("features", len(fc.Features)).
		Int("geojson_bytes", len(raw)).
		Int("sfbin_bytes", len(data)).
		Float64("ratio", float64(len(raw))/float64(len(data))).
		Msg("Encoded")

	return nil
}

// DecodeCmd decodes an sfbin stream back into GeoJSON.
type DecodeCmd struct {
	Input  string `short:"i" long:"input"  required:"true" description:"Input sfbin file"`
	Output string `short:"o" long:"output" description:"Output GeoJSON file (default: stdout)"`
}

// Execute runs the decode command.
func (c *DecodeCmd) Execute(_ []string) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.Input).Msg("Failed to read input")
	}

	header, err := sfbin.ReadHeader(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Not an sfbin stream")
	}

	fc, err := sfbin.Unmarshal(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Decoding failed")
	}

	out, err := sfbin.ToGeoJSON(fc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render GeoJSON")
	}

	if err := writeOutput(c.Output, out); err != nil {
		log.Fatal().Err(err).Str("path", c.Output).Msg("Failed to write output")
	}

	log.Info().
		Str("variant", header.Variant.String()).
		Uint64("features", header.FeatureCount).
		Float64("precision_bound", header.PrecisionBound()).
		Msg("Decoded")

	return nil
}

// CompareCmd reports the encoded size of one dataset across formats.
type CompareCmd struct {
	Input  string  `short:"i" long:"input" required:"true" description:"Input GeoJSON file"`
	Scale  float64 `long:"scale"  description:"Quantization scale for v7 (default: 1e-7)"`
	Schema string  `long:"schema" description:"Attribute schema mode: static, dynamic or auto (default: auto)"`
}

// Execute runs the compare command.
func (c *CompareCmd) Execute(_ []string) error {
	raw, err := os.ReadFile(c.Input)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.Input).Msg("Failed to read input")
	}

	fc, err := sfbin.FromGeoJSON(raw)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.Input).Msg("Failed to parse GeoJSON")
	}

	compact, err := sfbin.ToGeoJSON(fc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render GeoJSON")
	}

	o4, err := encodingOptions("v4", c.Scale, c.Schema)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid encoding options")
	}
	v4, err := sfbin.Marshal(fc, o4)
	if err != nil {
		log.Fatal().Err(err).Msg("v4 encoding failed")
	}

	o7, err := encodingOptions("v7", c.Scale, c.Schema)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid encoding options")
	}
	v7, err := sfbin.Marshal(fc, o7)
	if err != nil {
		log.Fatal().Err(err).Msg("v7 encoding failed")
	}

	fgb, err := sfbin.ExportFlatGeobuf(fc)
	if err != nil {
		log.Fatal().Err(err).Msg("FlatGeobuf export failed")
	}

	report := func(name string, size int) {
		fmt.Printf("  %-8s %12d bytes  (%6.2fx smaller)\n", name, size, float64(len(compact))/float64(size))
	}

	fmt.Printf("%s: %d features\n", c.Input, len(fc.Features))
	report("GeoJSON", len(compact))
	report("v4", len(v4))
	report("v7", len(v7))
	report("FGB", len(fgb))

	return nil
}
