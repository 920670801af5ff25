package cli

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nyggus/perftester"
)

// ConfigName is the settings file looked up in the working directory
// (perftester.yaml, perftester.yml, perftester.json, ...).
const ConfigName = "perftester"

// loadConfig reads the settings file, PERFTESTER_* environment variables
// and the command's flags into one viper instance. A missing default
// settings file is not an error; a missing explicit one is.
func loadConfig(flags *pflag.FlagSet, configFile string) (*viper.Viper, bool, error) {
	v := viper.New()

	v.SetEnvPrefix("PERFTESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("digits", perftester.DefaultDigits)
	v.SetDefault("log_to_file", true)
	v.SetDefault("log_file", perftester.DefaultLogFile)
	v.SetDefault("full_traceback", false)

	for key, flag := range map[string]string{
		"digits":         "digits",
		"log_to_file":    "log-to-file",
		"log_file":       "log-file",
		"full_traceback": "full-traceback",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, false, errors.Wrapf(err, "binding flag --%s", flag)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return v, false, nil
		}
		return nil, false, errors.Wrap(err, "reading settings file")
	}
	return v, true, nil
}

// applyConfig copies the loaded settings into the store using its public
// operations only.
func applyConfig(v *viper.Viper, cfg *perftester.Config, suite *perftester.Suite) error {
	if err := cfg.SetDigits(v.GetInt("digits")); err != nil {
		return err
	}
	cfg.SetLogToFile(v.GetBool("log_to_file"))
	if p := v.GetString("log_file"); p != "" {
		if err := cfg.SetLogFile(p); err != nil {
			return err
		}
	}
	if v.GetBool("full_traceback") {
		cfg.FullTraceback()
	} else {
		cfg.CutTraceback()
	}

	for _, kind := range sortedKeys(v.GetStringMap("defaults")) {
		params := paramsAt(v, "defaults."+kind)
		if err := cfg.SetDefaults(perftester.Kind(kind), params...); err != nil {
			return errors.Wrapf(err, "defaults.%s", kind)
		}
	}

	for _, name := range sortedKeys(v.GetStringMap("subjects")) {
		s, err := resolveSubject(suite, name)
		if err != nil {
			return err
		}
		for _, kind := range sortedKeys(v.GetStringMap("subjects." + name)) {
			params := paramsAt(v, "subjects."+name+"."+kind)
			if err := cfg.Set(s, perftester.Kind(kind), params...); err != nil {
				return errors.Wrapf(err, "subjects.%s.%s", name, kind)
			}
		}
	}
	return nil
}

func paramsAt(v *viper.Viper, path string) []perftester.Param {
	keys := sortedKeys(v.GetStringMap(path))
	params := make([]perftester.Param, 0, len(keys))
	for _, k := range keys {
		params = append(params, perftester.Param{Key: k, Value: v.GetInt(path + "." + k)})
	}
	return params
}

// resolveSubject finds a registered subject. Viper lower-cases keys, so the
// lookup falls back to a case-insensitive match.
func resolveSubject(suite *perftester.Suite, name string) (*perftester.Subject, error) {
	if s, ok := suite.Subject(name); ok {
		return s, nil
	}
	for _, candidate := range suite.SubjectNames() {
		if strings.EqualFold(candidate, name) {
			s, _ := suite.Subject(candidate)
			return s, nil
		}
	}
	return nil, errors.Newf("settings file names unknown subject %q", name)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
