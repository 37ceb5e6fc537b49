package common

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Version is stamped at build time via -ldflags.
var Version = "v0.0.0-dev"

// StartTime is the process start, unix seconds.
var StartTime = time.Now().Unix()

var (
	Port         = flag.Int("port", 3000, "the listening port")
	PrintVersion = flag.Bool("version", false, "print version and exit")
)

func Init() {
	flag.Parse()

	if *PrintVersion {
		fmt.Println(Version)
		os.Exit(0)
	}
}
