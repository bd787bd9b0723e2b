package main

import (
	"context"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epimap/epimap-api/rate"
	"github.com/epimap/epimap-api/score"
	"github.com/epimap/epimap-api/share/geojson"
	"github.com/epimap/epimap-api/store"
)

func init() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("epimap")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: import-boundary <wards.geojson>")
	}

	ctx := context.Background()
	opts := options.Client().ApplyURI(viper.GetString("mongo.conn"))
	client, err := mongo.NewClient(opts)
	if err != nil {
		log.Panic(err)
	}
	if err := client.Connect(ctx); err != nil {
		log.Panic(err)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Panic(err)
	}
	defer f.Close()

	units, err := geojson.ParseUnits(f)
	if err != nil {
		log.Panic(err)
	}

	s := store.NewMongoStore(client, viper.GetString("mongo.database"), rate.DefaultPolicy(), score.Config{})
	if err := s.UpsertUnits(ctx, units); err != nil {
		log.Panic(err)
	}
	log.Infof("imported %d spatial units", len(units))
}
