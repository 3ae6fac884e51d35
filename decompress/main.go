package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"github.com/fumin/deepcabac"
	"github.com/pkg/errors"
)

var parallel = flag.Bool("parallel", false, "decode the segments of a layer concurrently")

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	w := bufio.NewWriter(os.Stdout)
	if err := deepcabac.Decompress(w, os.Stdin, *parallel); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("%+v", errors.Wrap(err, ""))
	}
}
