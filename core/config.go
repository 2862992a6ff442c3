package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Dir       string // uploaded solutions
		StaticURL string // base URL the solutions dir is served under
	}

	ExamConfig struct {
		Tracks                []Track
		DryRun                bool      // start time is never latched
		RehearsalCutoff       time.Time // zero: no rehearsal gate
		RehearsalPasscode     string
		AlwaysReviewLanguages []string
		MaxScore              int
		DisagreementThreshold int
		AnswerLanguages       []string
		PaperLanguages        []string
		LocaleTextsFile       string
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Exam     ExamConfig
	}
)

func (dbc DatabaseConfig) Address() string {
	return dbc.Host + ":" + dbc.Port
}

// Track returns the configured Track with the given ID.
func (ec ExamConfig) Track(id string) (Track, bool) {
	for _, t := range ec.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

func (ec ExamConfig) TrackIDs() []string {
	ids := make([]string, 0, len(ec.Tracks))
	for _, t := range ec.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

// NewConfig loads the configuration for the current ENV.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Olympiad")
	v.SetDefault("secretKey", "k2o#0v!b7_a-s9ql^f4w1+2l$nr8xz@6j0gq)ie&hy_d3mctu")
	v.SetDefault("frontendBaseURL", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_addr", ":8000")
	v.SetDefault("server_debugHost", ":4000")
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_jwtExpirationDelta", 12*time.Hour)
	v.SetDefault("server_jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "olympiad")
	v.SetDefault("database_user", "olympiad")
	v.SetDefault("database_password", "olympiad")
	v.SetDefault("database_adminUser", "postgres")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("storage_dir", "/tmp/olympiad")
	v.SetDefault("storage_staticURL", "http://localhost:8000/static/solutions")

	v.SetDefault("exam_day1Duration", 4*time.Hour)
	v.SetDefault("exam_day2Duration", 5*time.Hour)
	v.SetDefault("exam_day1Problems", "1-99")
	v.SetDefault("exam_day2Problems", "100-199")
	v.SetDefault("exam_dryRun", false)
	v.SetDefault("exam_rehearsalCutoff", "")
	v.SetDefault("exam_rehearsalPasscode", "")
	v.SetDefault("exam_alwaysReviewLanguages", "estonian")
	v.SetDefault("exam_maxScore", 7)
	v.SetDefault("exam_disagreementThreshold", 2)
	v.SetDefault("exam_answerLanguages",
		"arabic,english,estonian,french,german,hungarian,italian,russian,spanish,thai")
	v.SetDefault("exam_paperLanguages",
		"albanian,arabic,chinese,croatian,dutch-flemish,english,french,german,hindi,hungarian,italian,"+
			"japanese,latvian,portuguese,romanian,russian,slovenian,spanish,thai,turkish,ukranian,uzbek")
	v.SetDefault("exam_localeTextsFile", "")

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Addr:                      v.GetString("server_addr"),
			DebugHost:                 v.GetString("server_debugHost"),
			ShutdownTimeout:           v.GetDuration("server_shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server_jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
		},
		Storage: StorageConfig{
			Dir:       v.GetString("storage_dir"),
			StaticURL: strings.TrimSuffix(v.GetString("storage_staticURL"), "/"),
		},
		Exam: ExamConfig{
			Tracks: []Track{
				newTrack(TrackDay1, v.GetDuration("exam_day1Duration"), problemRange(v, "exam_day1Problems")),
				newTrack(TrackDay2, v.GetDuration("exam_day2Duration"), problemRange(v, "exam_day2Problems")),
			},
			DryRun:                v.GetBool("exam_dryRun"),
			RehearsalPasscode:     v.GetString("exam_rehearsalPasscode"),
			AlwaysReviewLanguages: splitList(v.GetString("exam_alwaysReviewLanguages")),
			MaxScore:              v.GetInt("exam_maxScore"),
			DisagreementThreshold: v.GetInt("exam_disagreementThreshold"),
			AnswerLanguages:       splitList(v.GetString("exam_answerLanguages")),
			PaperLanguages:        splitList(v.GetString("exam_paperLanguages")),
			LocaleTextsFile:       v.GetString("exam_localeTextsFile"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from

	if cutoff := v.GetString("exam_rehearsalCutoff"); cutoff != "" {
		t, err := time.Parse(time.RFC3339, cutoff)
		if err != nil {
			log.Fatalf("config.exam_rehearsalCutoff(%s): %v", cutoff, err)
		}
		conf.Exam.RehearsalCutoff = t.UTC()
	}
	return conf
}

// String hides secrets; used when logging the startup configuration.
func (c *Config) String() string {
	return fmt.Sprintf("env=%s build=%s debug=%t testMode=%t db=%s/%s storage=%s dryRun=%t",
		c.Env, c.Build, c.Debug, c.TestMode, c.Database.Address(), c.Database.Name, c.Storage.Dir, c.Exam.DryRun)
}

func problemRange(v *viper.Viper, key string) ProblemRange {
	pr, err := ParseProblemRange(v.GetString(key))
	if err != nil {
		log.Fatalf("config.%s: %v", key, err)
	}
	return pr
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanString(p, true /* lower */); p != "" {
			items = append(items, p)
		}
	}
	return items
}
