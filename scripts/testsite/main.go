package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/grantcarthew/loadsum/internal/testsite"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:3000", "listen address")
	assets := flag.Int("assets", 10, "stylesheets linked from the page")
	size := flag.Int("size", 100*1024, "bytes per stylesheet")
	straggler := flag.Duration("straggler", time.Second, "delay of the request fired after load (0 disables it)")
	flag.Parse()

	site := testsite.New(testsite.Options{Assets: *assets, AssetSize: *size, Straggler: *straggler})

	fmt.Printf("Test site on http://%s/ (%d requests per load)\n", *addr, site.PageRequests())
	fmt.Println("\nPress Ctrl+C to stop")

	srv := &http.Server{Addr: *addr, Handler: site, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
