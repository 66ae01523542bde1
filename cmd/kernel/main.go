package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"deltanet/pkg/api"
	"deltanet/pkg/db"
	"deltanet/pkg/kernel"
	"deltanet/pkg/version"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	token := flag.String("token", "", "bootstrap auth token for the HTTP status surface (optional)")
	usersDB := flag.Bool("users-db", false, "enable MySQL-backed admin users and audit log (MYSQL_* env)")
	catalog := flag.Bool("catalog", false, "mirror registered nodes into Consul KV (requires build tag consul)")
	consulAddr := flag.String("consul-addr", "127.0.0.1:8500", "consul address (when --catalog)")
	tlsCert := flag.String("tls-cert", "", "TLS cert path (enables HTTPS if set with --tls-key)")
	tlsKey := flag.String("tls-key", "", "TLS key path (enables HTTPS if set with --tls-cert)")
	clientCA := flag.String("client-ca", "", "require and verify client certs using this CA (optional)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		log.Printf("kernel version=%s", version.Build)
		return
	}

	var cat kernel.Catalog
	if *catalog {
		c, err := kernel.NewConsulCatalog(*consulAddr)
		if err != nil {
			log.Fatalf("consul catalog init failed: %v", err)
		}
		cat = c
	}

	metrics := kernel.NewMetrics()
	metrics.Register(prometheus.DefaultRegisterer)
	router := kernel.NewRouter(cat, metrics)

	cfg := api.Config{Router: router, Token: *token}
	if *usersDB {
		gormDB, err := db.Init()
		if err != nil {
			log.Fatalf("users db init failed: %v", err)
		}
		cfg.DB = gormDB
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, cfg)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("kernel version=%s listening on %s", version.Build, *addr)
	var err error
	if *tlsCert != "" && *tlsKey != "" {
		if *clientCA != "" {
			tlsCfg, errTLS := api.ServerTLSConfig(*tlsCert, *tlsKey, *clientCA)
			if errTLS != nil {
				log.Fatalf("failed to build TLS config: %v", errTLS)
			}
			srv.TLSConfig = tlsCfg
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		}
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}
