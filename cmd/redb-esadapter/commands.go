package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/spf13/cobra"

	esbackend "github.com/redbco/redb-esadapter/internal/datastore/elasticsearch"
	"github.com/redbco/redb-esadapter/internal/server"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/health"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long:  `Register every configured datastore and serve the HTTP API until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, key := range a.settings.Keys() {
			a.logger.Debug("config %s=%s", key, a.settings.Get(key))
		}
		n := a.registerAll(ctx)
		a.logger.Info("Registered %d of %d datastores", n, len(a.file.Datastores))

		timeout, _ := cmd.Flags().GetDuration("operation-timeout")
		srv := server.New(a.adapter,
			server.WithLogger(a.logger),
			server.WithGatherer(a.registry),
			server.WithOperationTimeout(timeout),
		)
		err = srv.Run(ctx, a.file.Server)
		a.logger.Info("HTTP server stopped")
		return err
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping [identity]",
	Short: "Check that a datastore is reachable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if err := a.registerOne(ctx, args[0]); err != nil {
			return err
		}
		check, err := a.adapter.Registry().CheckHealth(ctx, args[0])
		if err != nil {
			return err
		}
		if check.Status != health.StatusHealthy {
			return fmt.Errorf("datastore %s is %s: %s", args[0], check.Status, check.Message)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is %s (%v)\n", args[0], check.Status, check.Duration)
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count [identity] [collection]",
	Short: "Count documents of a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := queryFlag(cmd)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if err := a.registerOne(ctx, args[0]); err != nil {
			return err
		}
		n, err := a.adapter.Count(ctx, args[0], args[1], criteria)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [identity] [collection]",
	Short: "Search documents of a collection",
	Long:  `Search a collection and print the matching documents as JSON. --index searches other indices instead.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := queryFlag(cmd)
		if err != nil {
			return err
		}
		indices, _ := cmd.Flags().GetStringSlice("index")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if err := a.registerOne(ctx, args[0]); err != nil {
			return err
		}
		docs, err := a.adapter.Search(ctx, args[0], args[1], criteria, indices...)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	},
}

var importCmd = &cobra.Command{
	Use:   "import [identity] [collection] [file.ndjson]",
	Short: "Bulk-load newline-delimited JSON documents",
	Long:  `Index every line of the file as one document of the collection. Elasticsearch datastores only.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, collection, path := args[0], args[1], args[2]

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if err := a.registerOne(ctx, identity); err != nil {
			return err
		}
		client, err := a.adapter.Client(identity)
		if err != nil {
			return err
		}
		es, ok := client.(*elasticsearch.Client)
		if !ok {
			return fmt.Errorf("import: datastore %s: %w", identity, adapter.ErrOperationNotSupported)
		}
		c, err := a.adapter.Registry().Resolve(identity, collection)
		if err != nil {
			return err
		}

		cfg := esbackend.DefaultLoaderConfig()
		if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
			cfg.Workers = w
		}
		if ds, ok := a.file.Datastore(identity); ok {
			cfg.Refresh = ds.Refresh
		}

		stats, err := esbackend.Load(ctx, es, c.Index(), f, cfg)
		fmt.Fprintf(cmd.OutOrStdout(), "added %d, indexed %d, failed %d\n", stats.Added, stats.Indexed, stats.Failed)
		for _, e := range stats.Errors {
			a.logger.Warn("import: %s", e)
		}
		return err
	},
}

// queryFlag parses --query as a JSON search body.
func queryFlag(cmd *cobra.Command) (adapter.Criteria, error) {
	raw, _ := cmd.Flags().GetString("query")
	if raw == "" {
		return nil, nil
	}
	var criteria adapter.Criteria
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, fmt.Errorf("invalid --query: %w", err)
	}
	return criteria, nil
}

func setupCommands() {
	serveCmd.Flags().Duration("operation-timeout", server.DefaultOperationTimeout, "Upper bound for each datastore call made by a request")
	countCmd.Flags().String("query", "", `Search body as JSON, e.g. '{"query":{"term":{"name":"a"}}}'`)
	searchCmd.Flags().String("query", "", "Search body as JSON")
	searchCmd.Flags().StringSlice("index", nil, "Search these indices instead of the collection's")
	importCmd.Flags().Int("workers", 0, "Number of bulk workers (defaults to the number of CPUs)")

	rootCmd.AddCommand(serveCmd, pingCmd, countCmd, searchCmd, importCmd)
}
