package settings

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "ARTIFACT_DOWNLOADER"
	legacyPat = "TOKEN_PAT"
)

var (
	ErrHelp           = errors.New("help requested")
	ErrMissingSetting = errors.New("missing setting")
	ErrInvalidSetting = errors.New("invalid setting")
)

type Settings struct {
	Owner        string
	Repo         string
	ArtifactName string
	WorkflowID   string
	OutputPath   string
	Token        string
	APIURL       string
	Overwrite    bool
	Debug        bool
}

// MissingError reports the first required setting that was not supplied.
type MissingError struct {
	Setting string
	Flag    string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s is not set (use --%s)", e.Setting, e.Flag)
}

func (e *MissingError) Is(target error) bool {
	return target == ErrMissingSetting
}

// IsConfigError reports whether err came from parsing or validating settings.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingSetting) || errors.Is(err, ErrInvalidSetting)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("artifact-downloader", pflag.ContinueOnError)
	fs.StringP("repository", "r", "", "repository name")
	fs.StringP("user", "u", "", "account or organization that owns the repository")
	fs.StringP("artifact", "a", "", "name of the artifact to download")
	fs.StringP("workflow", "w", "", "workflow file name or numeric id")
	fs.StringP("output", "o", "", "directory the archive is written to")
	fs.StringP("pat", "p", "", "personal access token (falls back to $"+legacyPat+")")
	fs.String("api-url", "", "GitHub API root for GitHub Enterprise (default https://api.github.com/)")
	fs.BoolP("overwrite", "v", false, "replace <artifact>.zip instead of writing <artifact>-<run>.zip")
	fs.BoolP("debug", "d", false, "log debug output and mirror it to debug.log")
	return fs
}

// Parse reads settings from a full argument vector. args[0] is the program
// path and is ignored. Every other token is split on its first '=' and the
// left side is matched against the long or short flag names. Unknown tokens
// are logged and skipped. Settings not given on the command line are read
// from ARTIFACT_DOWNLOADER_* environment variables, and the token also from
// TOKEN_PAT.
func Parse(args []string, out io.Writer, log zerolog.Logger) (*Settings, error) {
	fs := newFlagSet()

	if len(args) > 0 {
		args = args[1:]
	}

	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")

		if name == "-h" || name == "--help" {
			fmt.Fprintf(out, "Usage:\n  artifact-downloader [flags]\n\nFlags:\n%s", fs.FlagUsages())
			return nil, ErrHelp
		}

		flag := lookup(fs, name)
		if flag == nil {
			log.Warn().Str("argument", name).Msg("Unknown argument")
			continue
		}

		if !hasValue {
			if flag.NoOptDefVal == "" {
				log.Warn().Str("argument", name).Msg("Argument has no value")
				continue
			}
			value = flag.NoOptDefVal
		}

		if err := fs.Set(flag.Name, value); err != nil {
			return nil, fmt.Errorf("%w: --%s=%s: %v", ErrInvalidSetting, flag.Name, value, err)
		}
	}

	v, err := bind(fs)
	if err != nil {
		return nil, err
	}

	overwrite, err := getBool(v, "overwrite")
	if err != nil {
		return nil, err
	}
	debug, err := getBool(v, "debug")
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		Owner:        v.GetString("user"),
		Repo:         v.GetString("repository"),
		ArtifactName: v.GetString("artifact"),
		WorkflowID:   v.GetString("workflow"),
		OutputPath:   v.GetString("output"),
		Token:        v.GetString("pat"),
		APIURL:       v.GetString("api-url"),
		Overwrite:    overwrite,
		Debug:        debug,
	}

	log.Debug().
		Str("owner", settings.Owner).
		Str("repository", settings.Repo).
		Str("artifact", settings.ArtifactName).
		Str("workflow", settings.WorkflowID).
		Str("output", settings.OutputPath).
		Bool("overwrite", settings.Overwrite).
		Msg("Settings parsed")

	return settings, nil
}

// WantsDebug reports whether args or the environment turn on debug logging.
// It logs nothing, so the logger can be built before Parse runs.
func WantsDebug(args []string) bool {
	fs := newFlagSet()

	if len(args) > 0 {
		args = args[1:]
	}

	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		flag := lookup(fs, name)
		if flag == nil || flag.Name != "debug" {
			continue
		}
		if !hasValue {
			value = flag.NoOptDefVal
		}
		if err := fs.Set(flag.Name, value); err != nil {
			return false
		}
	}

	v, err := bind(fs)
	if err != nil {
		return false
	}
	debug, err := getBool(v, "debug")
	return err == nil && debug
}

func bind(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}
	if err := v.BindEnv("pat", envPrefix+"_PAT", legacyPat); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}
	return v, nil
}

// getBool parses a boolean the same way whether it came from a flag or the
// environment. viper's GetBool would turn an unparsable value into false.
func getBool(v *viper.Viper, key string) (bool, error) {
	raw := v.GetString(key)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q: %v", ErrInvalidSetting, key, raw, err)
	}
	return b, nil
}

func lookup(fs *pflag.FlagSet, name string) *pflag.Flag {
	switch {
	case strings.HasPrefix(name, "--"):
		return fs.Lookup(name[2:])
	case len(name) == 2 && name[0] == '-':
		return fs.ShorthandLookup(name[1:])
	}
	return nil
}

// Validate checks that every required setting is present. It returns a
// *MissingError for the first one that is not.
func (s *Settings) Validate() error {
	required := []struct {
		value   string
		setting string
		flag    string
	}{
		{s.ArtifactName, "artifact name", "artifact"},
		{s.OutputPath, "output path", "output"},
		{s.Owner, "owner", "user"},
		{s.Token, "personal access token", "pat"},
		{s.Repo, "repository", "repository"},
		{s.WorkflowID, "workflow id", "workflow"},
	}

	for _, r := range required {
		if r.value == "" {
			return &MissingError{Setting: r.setting, Flag: r.flag}
		}
	}

	return nil
}
