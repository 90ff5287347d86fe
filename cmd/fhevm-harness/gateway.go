// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/luxfi/fhevm-harness/gateway"
	"github.com/luxfi/fhevm-harness/kms"
)

const shutdownTimeout = 5 * time.Second

type gatewayFlags struct {
	listen     string
	seed       string
	numSigners int
	chainID    uint64
}

func (a *app) gatewayCmd() *cobra.Command {
	var f gatewayFlags
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve an in-process KMS gateway for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("signers") {
				f.numSigners = cfg.NumKMSSigners
			}
			if f.chainID == 0 {
				n, err := a.network(cfg)
				if err != nil {
					return err
				}
				f.chainID = n.ChainID
			}

			handler, k, err := a.newGatewayHandler(f)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", f.listen)
			if err != nil {
				return err
			}
			a.logger.Info("gateway listening",
				"addr", ln.Addr().String(),
				"chainID", k.ChainID(),
				"kmsSigners", k.SignerAddresses(),
			)
			return serve(cmd.Context(), ln, handler)
		},
	}
	cmd.Flags().StringVar(&f.listen, "listen", "127.0.0.1:7077", "listen address")
	cmd.Flags().StringVar(&f.seed, "seed", "fhevm-harness", "seed for the KMS signer keys")
	cmd.Flags().IntVar(&f.numSigners, "signers", kms.DefaultNumSigners, "number of KMS signers (default NUM_KMS_SIGNERS)")
	cmd.Flags().Uint64Var(&f.chainID, "chain-id", 0, "chain id (default from the selected network)")
	return cmd
}

// newGatewayHandler wires the KMS behind /reencrypt and /encrypt, with
// metrics on /metrics.
func (a *app) newGatewayHandler(f gatewayFlags) (http.Handler, *kms.KMS, error) {
	k, err := kms.New(kms.Config{
		ChainID:    f.chainID,
		Seed:       []byte(f.seed),
		NumSigners: f.numSigners,
	}, kms.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv, err := gateway.NewServer(k, a.logger, reg)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/reencrypt", srv)
	mux.Handle("/encrypt", k.EncryptHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux, k, nil
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
