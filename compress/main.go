package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fumin/deepcabac"
	"github.com/pkg/errors"
)

var (
	flagConfig = flag.String("c", `{
		"LayerWidth": 0,
		"NumWeights": 0,
		"DQ": false,
		"ScanOrder": 0,
		"Profile": 0,
		"ParentNodeIDPresent": false,
		"CodebookSize": 0,
		"CodebookZeroOffset": 0,
		"UnaryLength": 10
		}`, "configuration")
)

func parseConfig() (deepcabac.LayerConfig, error) {
	config := deepcabac.LayerConfig{}
	if err := json.Unmarshal([]byte(*flagConfig), &config); err != nil {
		return deepcabac.LayerConfig{}, errors.Wrap(err, "")
	}
	configB, err := json.Marshal(config)
	if err != nil {
		return deepcabac.LayerConfig{}, errors.Wrap(err, "")
	}
	log.Printf("config: %s", configB)
	return config, nil
}

func run(name string, config deepcabac.LayerConfig) error {
	f, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer f.Close()

	w := bufio.NewWriter(os.Stdout)
	if err := deepcabac.Compress(w, bufio.NewReader(f), config); err != nil {
		return errors.Wrap(err, name)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] weights.csv\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		os.Exit(1)
	}

	config, err := parseConfig()
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if err := run(name, config); err != nil {
		log.Fatalf("%+v", err)
	}
}
