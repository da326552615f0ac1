// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/AleutianAI/weaviate-otel/pkg/logging"
	"github.com/AleutianAI/weaviate-otel/pkg/ux"
	"github.com/AleutianAI/weaviate-otel/pkg/validation"
	"github.com/AleutianAI/weaviate-otel/services/otelweaviate"
	"github.com/AleutianAI/weaviate-otel/services/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	protocol "github.com/weaviate/weaviate/grpc/generated/protocol/v1"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	demoTracer = "weaviatetrace"

	// embeddingDims is the size of the demo's local vectors, used when
	// the collection has no vectorizer module.
	embeddingDims = 16

	shutdownTimeout = 5 * time.Second

	readyPollInterval = 500 * time.Millisecond
)

// demoCorpus is the fixed set of objects the demo inserts.
var demoCorpus = []struct{ title, body string }{
	{"Vector databases", "Weaviate stores objects alongside their vector embeddings."},
	{"Distributed tracing", "Spans record the timing and outcome of each operation."},
	{"Similarity search", "Nearest neighbours are ranked by distance or certainty."},
	{"Batch import", "Objects are queued client-side and flushed in one request."},
	{"Context propagation", "Trace context travels with every request as a header."},
}

func newDemoCmd(st *cliState) *cobra.Command {
	var (
		weaviateURL string
		grpcAddr    string
		collection  string
		queries     []string
		workers     int
		rps         float64
		metricsAddr string
		keep        bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a traced workload against a Weaviate instance",
		Long: `demo creates a collection, imports a small corpus, runs similarity
queries from a rate-limited worker pool and drops the collection. Every
Weaviate call is traced through the configured exporters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := st.cfg
			f := cmd.Flags()
			if f.Changed("url") {
				cfg.Weaviate.URL = weaviateURL
			}
			if f.Changed("grpc-addr") {
				cfg.Weaviate.GRPCAddr = grpcAddr
			}
			if f.Changed("collection") {
				cfg.Demo.Collection = collection
			}
			if name, err := validation.NormalizeCollectionName(cfg.Demo.Collection); err == nil {
				cfg.Demo.Collection = name
			}
			if f.Changed("query") {
				cfg.Demo.Queries = queries
			}
			if f.Changed("workers") {
				cfg.Demo.Workers = workers
			}
			if f.Changed("rps") {
				cfg.Demo.RPS = rps
			}
			if f.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if f.Changed("keep") {
				cfg.Demo.Keep = keep
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDemo(ctx, cfg, st.logger, st.printer)
		},
	}

	f := cmd.Flags()
	f.StringVar(&weaviateURL, "url", "", "Weaviate REST URL")
	f.StringVar(&grpcAddr, "grpc-addr", "", "Weaviate gRPC address (host:port); enables the gRPC search step")
	f.StringVar(&collection, "collection", "", "collection to create and drop")
	f.StringArrayVar(&queries, "query", nil, "similarity query (repeatable)")
	f.IntVar(&workers, "workers", 0, "concurrent query workers")
	f.Float64Var(&rps, "rps", 0, "query rate limit in requests per second")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	f.BoolVar(&keep, "keep", false, "keep the collection after the run")
	return cmd
}

// runDemo wires telemetry and instrumentation and runs each demo step
// under one root span.
func runDemo(ctx context.Context, cfg Config, logger *logging.Logger, p *ux.Printer) (err error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, shutdown(sctx))
	}()

	if cfg.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(cfg, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	opts := []otelweaviate.Option{
		otelweaviate.WithLogger(logger.Slog()),
		otelweaviate.WithConnectionSpan(cfg.Weaviate.ConnectionSpan),
	}
	if cfg.Weaviate.ClientVersion != "" {
		opts = append(opts, otelweaviate.WithClientVersion(cfg.Weaviate.ClientVersion))
	}
	inst := otelweaviate.New()
	if err := inst.Instrument(opts...); err != nil {
		return fmt.Errorf("instrument weaviate client: %w", err)
	}
	defer inst.Uninstrument()

	api, _ := inst.Version()
	p.Title("Weaviate tracing demo")
	p.KeyValue("api", api.String())
	p.KeyValue("collection", cfg.Demo.Collection)

	ctx, span := telemetry.StartSpan(ctx, demoTracer, "weaviatetrace.demo")
	defer span.End()
	telemetry.SetSpanAttributes(span,
		attribute.String("weaviatetrace.collection", cfg.Demo.Collection),
		attribute.Int("weaviatetrace.queries", len(cfg.Demo.Queries)),
	)
	if tid := telemetry.TraceID(ctx); tid != "" {
		p.KeyValue("trace id", tid)
	}

	d, err := newDemo(ctx, cfg, inst, logger, p)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := d.run(ctx); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// serveMetrics starts the metrics router and returns its stop function.
func serveMetrics(cfg Config, logger *logging.Logger) (func(), error) {
	gin.SetMode(gin.ReleaseMode)
	ln, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.MetricsAddr, err)
	}
	srv := &http.Server{
		Handler:           newMetricsRouter(cfg.Telemetry.ServiceName, telemetry.MetricsHandler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// demo holds the state of one run.
type demo struct {
	cfg     Config
	inst    *otelweaviate.Instrumentor
	client  *weaviate.Client
	conn    otelweaviate.Connection
	api     otelweaviate.APIVersion
	logger  *logging.Logger
	printer *ux.Printer
}

func newDemo(ctx context.Context, cfg Config, inst *otelweaviate.Instrumentor, logger *logging.Logger, p *ux.Printer) (*demo, error) {
	u, err := url.Parse(cfg.Weaviate.URL)
	if err != nil {
		return nil, fmt.Errorf("parse weaviate url: %w", err)
	}
	client, conn, err := inst.NewClient(ctx, weaviate.Config{
		Host:   u.Host,
		Scheme: u.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	api, _ := inst.Version()
	return &demo{
		cfg:     cfg,
		inst:    inst,
		client:  client,
		conn:    conn,
		api:     api,
		logger:  logger,
		printer: p,
	}, nil
}

func (d *demo) run(ctx context.Context) (err error) {
	ctx = otelweaviate.ContextWithConnection(ctx, d.conn)

	if err := d.waitForReady(ctx); err != nil {
		return err
	}
	if err := d.createCollection(ctx); err != nil {
		return err
	}
	if !d.cfg.Demo.Keep {
		defer func() {
			err = errors.Join(err, d.dropCollection(ctx))
		}()
	}

	if err := d.importCorpus(ctx); err != nil {
		return err
	}
	if err := d.fetchObjects(ctx); err != nil {
		return err
	}
	if err := d.runQueries(ctx); err != nil {
		return err
	}
	if d.cfg.Weaviate.GRPCAddr != "" {
		if err := d.grpcSearch(ctx); err != nil {
			return err
		}
	}
	return nil
}

// descriptor picks the call site for the active API.
func (d *demo) descriptor(v4Span, v3Span string) otelweaviate.Descriptor {
	span := v3Span
	if d.api == otelweaviate.V4 {
		span = v4Span
	}
	desc, _ := otelweaviate.Lookup(d.api, span)
	return desc
}

func (d *demo) localVectors() bool {
	return d.cfg.Demo.Vectorizer == "" || d.cfg.Demo.Vectorizer == "none"
}

// waitForReady polls the readiness endpoint until it answers or
// ReadyTimeout elapses.
func (d *demo) waitForReady(ctx context.Context) error {
	timeout := d.cfg.Demo.ReadyTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		ready, err := d.client.Misc().ReadyChecker().Do(ctx)
		if err == nil && ready {
			return nil
		}
		d.logger.Debug("weaviate not ready", "url", d.cfg.Weaviate.URL, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("weaviate at %s not ready within %v", d.cfg.Weaviate.URL, timeout)
		case <-ticker.C:
		}
	}
}

func (d *demo) createCollection(ctx context.Context) error {
	class := &models.Class{
		Class:      d.cfg.Demo.Collection,
		Vectorizer: d.cfg.Demo.Vectorizer,
		Properties: []*models.Property{
			{Name: "title", DataType: []string{"text"}},
			{Name: "body", DataType: []string{"text"}},
		},
	}
	if err := d.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create collection %s: %w", class.Class, err)
	}
	d.printer.Success("created collection " + class.Class)
	return nil
}

// importCorpus queues every object through the batch add call site and
// flushes the batch in one request.
func (d *demo) importCorpus(ctx context.Context) error {
	name := d.cfg.Demo.Collection
	batcher := d.client.Batch().ObjectsBatcher()
	add := d.descriptor("collections.batch.add_object", "batch.crud_batch.add_data_object")

	for _, doc := range demoCorpus {
		obj := &models.Object{
			Class: name,
			ID:    strfmt.UUID(uuid.NewString()),
			Properties: map[string]interface{}{
				"title": doc.title,
				"body":  doc.body,
			},
		}
		if d.localVectors() {
			obj.Vector = embed(doc.title + " " + doc.body)
		}

		_, err := otelweaviate.Call(ctx, d.inst, otelweaviate.Invocation{
			Descriptor: add,
			Target:     otelweaviate.Collection(name),
			Request:    obj,
		}, func(ctx context.Context) (*models.Object, error) {
			batcher.WithObjects(obj)
			return obj, nil
		})
		if err != nil {
			return err
		}
	}

	result, err := batcher.Do(ctx)
	if err != nil {
		return fmt.Errorf("batch import failed: %w", err)
	}
	indexed := 0
	for _, obj := range result {
		if obj.Result != nil && obj.Result.Errors == nil {
			indexed++
		}
	}
	if indexed < len(demoCorpus) {
		d.printer.Warning(fmt.Sprintf("imported %d of %d objects", indexed, len(demoCorpus)))
	} else {
		d.printer.Success(fmt.Sprintf("imported %d objects", indexed))
	}
	return nil
}

func (d *demo) fetchObjects(ctx context.Context) error {
	resp, err := d.client.GraphQL().Get().
		WithClassName(d.cfg.Demo.Collection).
		WithFields(graphql.Field{Name: "title"}).
		WithLimit(d.cfg.Demo.Limit).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("fetch objects: %w", err)
	}
	if err := graphQLError(resp); err != nil {
		return fmt.Errorf("fetch objects: %w", err)
	}
	d.printer.Success(fmt.Sprintf("fetched %d objects", hitCount(resp, d.cfg.Demo.Collection)))
	return nil
}

// runQueries issues every configured query from a bounded worker pool,
// paced by a shared rate limiter.
func (d *demo) runQueries(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, demoTracer, "weaviatetrace.queries")
	defer span.End()

	limiter := rate.NewLimiter(rate.Limit(d.cfg.Demo.RPS), 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Demo.Workers)

	var hits atomic.Int64
	for _, q := range d.cfg.Demo.Queries {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			n, err := d.query(gctx, q)
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			hits.Add(int64(n))
			d.logger.Debug("query finished", "query", q, "hits", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	d.printer.Success(fmt.Sprintf("ran %d queries, %d hits", len(d.cfg.Demo.Queries), hits.Load()))
	return nil
}

func (d *demo) query(ctx context.Context, q string) (int, error) {
	gql := d.client.GraphQL()
	get := gql.Get().
		WithClassName(d.cfg.Demo.Collection).
		WithFields(graphql.Field{Name: "title"}, graphql.Field{Name: "_additional { distance certainty }"}).
		WithLimit(d.cfg.Demo.Limit)
	if d.localVectors() {
		get = get.WithNearVector(gql.NearVectorArgBuilder().WithVector(embed(q)))
	} else {
		get = get.WithNearText(gql.NearTextArgBuilder().WithConcepts([]string{q}))
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return 0, err
	}
	if err := graphQLError(resp); err != nil {
		return 0, err
	}
	return hitCount(resp, d.cfg.Demo.Collection), nil
}

// grpcSearch runs one search over a gRPC connection carrying the unary
// interceptor.
func (d *demo) grpcSearch(ctx context.Context) error {
	conn := otelweaviate.ParseURL(d.cfg.Weaviate.GRPCAddr)
	cc, err := grpc.NewClient(d.cfg.Weaviate.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(d.inst.UnaryClientInterceptor(conn)),
	)
	if err != nil {
		return fmt.Errorf("dial grpc %s: %w", d.cfg.Weaviate.GRPCAddr, err)
	}
	defer cc.Close()

	req := &protocol.SearchRequest{
		Collection: d.cfg.Demo.Collection,
		Limit:      uint32(d.cfg.Demo.Limit),
	}
	if d.localVectors() {
		req.NearVector = &protocol.NearVector{Vector: embed(d.cfg.Demo.Queries[0])}
	} else {
		req.NearText = &protocol.NearTextSearch{Query: []string{d.cfg.Demo.Queries[0]}}
	}

	reply, err := protocol.NewWeaviateClient(cc).Search(ctx, req)
	if err != nil {
		return fmt.Errorf("grpc search: %w", err)
	}
	d.printer.Success(fmt.Sprintf("grpc search returned %d results", len(reply.GetResults())))
	return nil
}

func (d *demo) dropCollection(ctx context.Context) error {
	name := d.cfg.Demo.Collection
	if err := d.client.Schema().ClassDeleter().WithClassName(name).Do(ctx); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	d.printer.Success("dropped collection " + name)
	return nil
}

// embed derives a deterministic unit-free vector from text so the demo
// runs against a Weaviate without vectorizer modules.
func embed(text string) []float32 {
	vec := make([]float32, embeddingDims)
	for i := range vec {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		vec[i] = float32(h.Sum32()%1000) / 1000
	}
	return vec
}

func graphQLError(resp *models.GraphQLResponse) error {
	if resp == nil || len(resp.Errors) == 0 {
		return nil
	}
	return errors.New(resp.Errors[0].Message)
}

// hitCount counts the objects returned for collection in a Get response.
func hitCount(resp *models.GraphQLResponse, collection string) int {
	if resp == nil {
		return 0
	}
	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return 0
	}
	objs, _ := get[collection].([]interface{})
	return len(objs)
}
