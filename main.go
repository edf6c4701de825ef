package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/homeinfo/hisecon/gateway"
	"github.com/homeinfo/hisecon/recaptcha"
	"github.com/homeinfo/hisecon/sites"
	"github.com/homeinfo/hisecon/userconfig"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	// Intercept interrupts so we can get more visibility into them.
	// One goroutine listens exclusively for interrupts so we can
	// handle them before the HTTP server starts in case of setup
	// issues.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func(c chan os.Signal) {
		<-sigCh
		log.Info().Msg("interrupt: exiting")
		os.Exit(0)
	}(sigCh)

	configPath := flag.String(
		"config",
		"./config.yaml",
		"path to a YAML file containing your configuration",
	)
	level := flag.String(
		"level",
		"info",
		`log level: "info", "debug", or "warn"`,
	)
	flag.Parse()

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("configPath", *configPath).
		Msg("starting the gateway")

	f, err := os.Open(*configPath)

	if err != nil {
		log.Error().
			Str("config-path", *configPath).
			Err(err).
			Msg("We can't open the application config file")
		os.Exit(1)
	}

	config, err := userconfig.Parse(f)

	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem parsing your config")
		os.Exit(1)
	}

	checkedConfig, err := config.CheckAndSetDefaults()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem validating your config")
		os.Exit(1)
	}

	log.Info().Str("configPath", *configPath).Msg("successfully validated the config")

	registry, err := sites.Load(checkedConfig.Server.SitesPath)
	if err != nil {
		log.Error().
			Str("sitesPath", checkedConfig.Server.SitesPath).
			Err(err).
			Msg("We can't load the sites file")
		os.Exit(1)
	}

	log.Info().
		Int("count", registry.Len()).
		Msg("loaded the site profiles")

	gw, err := gateway.New(gateway.Config{
		Sites: registry,
		Verifier: &recaptcha.Verifier{
			// Determined arbitrarily. Google answers well within this,
			// and a hanging verification must not pin a submission
			// forever.
			HTTPClient: &http.Client{Timeout: time.Duration(10) * time.Second},
		},
		Mail:           checkedConfig.Mail,
		MaxBodySize:    checkedConfig.Server.MaxBodySize,
		SuccessMessage: checkedConfig.Server.SuccessMessage,
	})
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem setting up the gateway")
		os.Exit(1)
	}

	router := httprouter.New()
	router.Handler(http.MethodPost, "/", gw)

	handler := cors.New(cors.Options{
		AllowedOrigins: checkedConfig.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(router)

	log.Info().
		Str("listenAddress", checkedConfig.Server.ListenAddress).
		Msg("listening for submissions")

	if err := http.ListenAndServe(checkedConfig.Server.ListenAddress, handler); err != nil {
		log.Error().Err(err).Msg("the server stopped")
		os.Exit(1)
	}
}
