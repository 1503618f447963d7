package main

import (
	"os"

	"github.com/golang/glog"
)

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
