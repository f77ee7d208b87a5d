package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/daimatz/jclass/pkg/classfile"
	"github.com/daimatz/jclass/pkg/inspect"
	"github.com/daimatz/jclass/pkg/loader"
)

type options struct {
	classPath   string
	configPath  string
	format      string
	color       string
	diff        bool
	hierarchy   bool
	interactive bool
	verbose     bool
	targets     []string
}

func main() {
	var opts options
	flag.StringVar(&opts.classPath, "cp", "", "Class path for loading classes by name (overrides the config file)")
	flag.StringVar(&opts.configPath, "config", "", "Path to jclass.toml (default: search upwards from the working directory)")
	flag.StringVar(&opts.format, "format", "", "Output format: text, json or cbor")
	flag.StringVar(&opts.color, "color", "", "Color text output: auto, always or never")
	flag.BoolVar(&opts.diff, "diff", false, "Print a unified diff between two classes")
	flag.BoolVar(&opts.hierarchy, "super", false, "Print the superclass chain of each class")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive member browser")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.Parse()
	opts.targets = flag.Args()

	if len(opts.targets) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: jclass [-cp path] [-format text|json|cbor] <file.class | class.Name>...")
		fmt.Fprintln(os.Stderr, "       jclass -diff <a> <b>")
		fmt.Fprintln(os.Stderr, "       jclass -i <class>  (interactive mode)")
		os.Exit(1)
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	classfile.SetLogger(log)

	err = run(opts, os.Stdout, log)
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// session holds everything resolved from flags, environment and config.
type session struct {
	loader loader.ClassLoader
	decode []classfile.Option
	format inspect.Format
	styles inspect.Styles
	log    *zap.Logger
}

func newSession(opts options, log *zap.Logger) (*session, error) {
	var cfg *Config
	var err error
	if opts.configPath != "" {
		cfg, err = LoadConfig(opts.configPath)
	} else {
		cfg, err = FindConfig(".")
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{Output: OutputConfig{Format: "text", Color: "auto"}}
	} else {
		log.Debug("loaded config", zap.String("dir", cfg.Dir))
	}

	s := &session{log: log}
	if cfg.Decode.UnknownConstantTags {
		s.decode = append(s.decode, classfile.WithUnknownConstantTags())
	}

	formatName := cfg.Output.Format
	if opts.format != "" {
		formatName = opts.format
	}
	if s.format, err = inspect.ParseFormat(formatName); err != nil {
		return nil, err
	}

	color := cfg.Output.Color
	if opts.color != "" {
		color = opts.color
	}
	switch color {
	case "always":
		s.styles = inspect.ColorStyles()
	case "never":
		s.styles = inspect.PlainStyles()
	case "auto":
		if term.IsTerminal(int(os.Stdout.Fd())) {
			s.styles = inspect.ColorStyles()
		} else {
			s.styles = inspect.PlainStyles()
		}
	default:
		return nil, fmt.Errorf("unknown color mode %q", color)
	}

	var chain loader.Chain
	if jmod := jmodPath(cfg); jmod != "" {
		if _, err := os.Stat(jmod); err == nil {
			chain = append(chain, loader.NewJmodClassLoader(jmod, s.decode...))
		} else {
			log.Warn("ignoring missing jmod", zap.String("path", jmod))
		}
	}
	if opts.classPath != "" {
		chain = append(chain, loader.ParseClassPath(opts.classPath, s.decode...)...)
	} else {
		for _, e := range cfg.ClassPathEntries() {
			chain = append(chain, loader.ParseClassPath(e, s.decode...)...)
		}
	}
	s.loader = loader.NewCache(chain, log)
	return s, nil
}

// jmodPath prefers the config file, then the environment and the usual
// install locations.
func jmodPath(cfg *Config) string {
	if p := cfg.JmodPath(); p != "" {
		return p
	}
	return loader.DefaultJmodPath()
}

// load decodes a target given either as a .class path or as a class name.
func (s *session) load(target string) (*classfile.ClassFile, error) {
	if strings.HasSuffix(target, ".class") {
		if _, err := os.Stat(target); err == nil {
			return classfile.ParseFile(target, s.decode...)
		}
		target = strings.TrimSuffix(target, ".class")
	}
	cf, err := s.loader.LoadClass(strings.ReplaceAll(target, ".", "/"))
	if errors.Is(err, loader.ErrClassNotFound) {
		return nil, fmt.Errorf("%s: not a class file and not found on the class path", target)
	}
	return cf, err
}

func (s *session) summary(target string) (*inspect.Summary, error) {
	cf, err := s.load(target)
	if err != nil {
		return nil, err
	}
	return inspect.Summarize(cf)
}

func run(opts options, w io.Writer, log *zap.Logger) error {
	s, err := newSession(opts, log)
	if err != nil {
		return err
	}

	switch {
	case opts.diff:
		if len(opts.targets) != 2 {
			return fmt.Errorf("-diff needs exactly two classes, got %d", len(opts.targets))
		}
		a, err := s.summary(opts.targets[0])
		if err != nil {
			return err
		}
		b, err := s.summary(opts.targets[1])
		if err != nil {
			return err
		}
		d, err := inspect.Diff(opts.targets[0], opts.targets[1], a, b)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, d)
		return err

	case opts.interactive:
		if len(opts.targets) != 1 {
			return fmt.Errorf("-i needs exactly one class, got %d", len(opts.targets))
		}
		sum, err := s.summary(opts.targets[0])
		if err != nil {
			return err
		}
		return runInteractive(sum)

	case opts.hierarchy:
		r := loader.NewResolver(s.loader)
		for _, target := range opts.targets {
			cf, err := s.load(target)
			if err != nil {
				return err
			}
			name, err := cf.ClassName()
			if err != nil {
				return err
			}
			chain := []string{name}
			if super := cf.SuperClassName(); super != "" {
				rest, err := r.Superclasses(super)
				chain = append(chain, rest...)
				if err != nil {
					log.Warn("superclass chain incomplete", zap.String("class", name), zap.Error(err))
				}
			}
			fmt.Fprintln(w, strings.Join(chain, " -> "))
		}
		return nil
	}

	for i, target := range opts.targets {
		sum, err := s.summary(target)
		if err != nil {
			return err
		}
		if i > 0 && s.format == inspect.FormatText {
			fmt.Fprintln(w)
		}
		if err := inspect.Encode(w, sum, s.format, s.styles); err != nil {
			return err
		}
	}
	return nil
}
