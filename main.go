package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/epimap/epimap-api/api"
	"github.com/epimap/epimap-api/rate"
	"github.com/epimap/epimap-api/raster"
	"github.com/epimap/epimap-api/schema"
	"github.com/epimap/epimap-api/score"
	"github.com/epimap/epimap-api/store"
)

var (
	server      *api.Server
	epimapStore store.EpimapStore
)

func initLog() {
	logLevel, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(logLevel)
	}

	log.SetOutput(os.Stdout)

	log.SetFormatter(&prefixed.TextFormatter{
		ForceFormatting: true,
		FullTimestamp:   true,
	})
}

func loadConfig(file string) {
	// Config from file
	viper.SetConfigType("yaml")
	if file != "" {
		viper.SetConfigFile(file)
	}

	viper.AddConfigPath("/.config/")
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()
	if err != nil {
		fmt.Println("No config file. Read config from env.")
		viper.AllowEmptyEnv(false)
	}

	// Config from env if possible
	viper.AutomaticEnv()
	viper.SetEnvPrefix("epimap")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("rate.fallback.enabled", true)
	viper.SetDefault("rate.fallback.threshold", 50.0)
	viper.SetDefault("score.risk_threshold", 0.5)
	viper.SetDefault("covariate.parallelism", 4)
}

func ratePolicy() rate.Policy {
	return rate.Policy{
		FallbackEnabled:   viper.GetBool("rate.fallback.enabled"),
		FallbackThreshold: viper.GetFloat64("rate.fallback.threshold"),
	}
}

func scoringConfig() score.Config {
	weights := map[string]float64{}
	for name, w := range viper.GetStringMap("score.weights") {
		// yaml decodes whole-number weights as ints
		switch v := w.(type) {
		case float64:
			weights[name] = v
		case int:
			weights[name] = float64(v)
		case int64:
			weights[name] = float64(v)
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				weights[name] = f
			}
		}
	}
	return score.Config{
		Weights:       weights,
		RiskThreshold: viper.GetFloat64("score.risk_threshold"),
		TotalResource: viper.GetFloat64("score.total_resource"),
	}
}

func main() {
	var configFile string

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Server is preparing to shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if server != nil {
			log.Info("Shutdown api server")
			if err := server.Shutdown(ctx); err != nil {
				log.Error("Server Shutdown:", err)
			}
		}

		if epimapStore != nil {
			log.Info("Shutting down db store")
			epimapStore.Close()
		}

		os.Exit(1)
	}()

	flag.StringVar(&configFile, "c", "./config.yaml", "[optional] path of configuration file")
	flag.Parse()

	loadConfig(configFile)

	initLog()

	// Sentry
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              viper.GetString("sentry.dsn"),
		AttachStacktrace: true,
		Environment:      viper.GetString("sentry.environment"),
		Dist:             viper.GetString("sentry.dist"),
	}); err != nil {
		log.Error(err)
	}
	log.WithField("prefix", "init").Info("Initialized sentry")

	// initialise mongodb connections
	opts := options.Client().ApplyURI(viper.GetString("mongo.conn"))
	opts.SetMaxPoolSize(viper.GetUint64("mongo.pool"))
	mongoClient, err := mongo.NewClient(opts)
	if nil != err {
		log.Panicf("create mongo client with error: %s", err)
	}

	err = mongoClient.Connect(context.Background())
	if nil != err {
		log.Panicf("connect mongo database with error: %s", err)
	}

	if viper.GetBool("mongo.index") {
		indexer := schema.NewMongoDBIndexer(viper.GetString("mongo.conn"), viper.GetString("mongo.database"))
		indexer.IndexAll()
		log.WithField("prefix", "init").Info("Ensured mongo indexes")
	}

	epimapStore = store.NewMongoStore(
		mongoClient,
		viper.GetString("mongo.database"),
		ratePolicy(),
		scoringConfig())

	// Init http server
	server = api.NewServer(epimapStore, raster.NewCache())
	log.WithField("prefix", "init").Info("Initialized http server")

	log.Fatal(server.Run(":" + viper.GetString("server.port")))
}
