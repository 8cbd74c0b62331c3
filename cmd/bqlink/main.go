package main

import (
	"log"
	"os"

	_ "github.com/viant/scy/kms/blowfish"

	"github.com/bqlink/bqlink"
)

func main() {
	if err := bqlink.Run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
