package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/chemflow"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/api"
	"github.com/viant/chemflow/service/dao"
)

func newSubmitCmd(app *App) *cobra.Command {
	var sets []string
	var run bool
	cmd := &cobra.Command{
		Use:   "submit WORKFLOW",
		Short: "Validate a workflow document and create a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			init, err := ParseSet(sets)
			if err != nil {
				return err
			}
			srv, err := app.Service(ctx)
			if err != nil {
				return err
			}
			runtime := srv.Runtime()
			wf, err := runtime.LoadWorkflow(ctx, args[0])
			if err != nil {
				return err
			}
			aRun, err := runtime.Submit(ctx, wf, init)
			if err != nil {
				return err
			}
			out := app.Output()
			out.Message("submitted run %s", aRun.ID)
			if !run {
				out.Snapshot(aRun.Snapshot())
				return nil
			}
			return drive(ctx, srv, aRun.ID, out)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "init value override key=value (repeatable)")
	cmd.Flags().BoolVar(&run, "run", false, "drive the run until it is terminal")
	return cmd
}

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run RUN_ID",
		Short: "Drive a run until it is terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			return drive(cmd.Context(), srv, args[0], app.Output())
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return snapshotCmd(app, "status RUN_ID", "Show per-stage status of a run", func(ctx context.Context, rt *chemflow.Runtime, args []string) (*execution.Snapshot, error) {
		return rt.Status(ctx, args[0])
	})
}

func newCancelCmd(app *App) *cobra.Command {
	return snapshotCmd(app, "cancel RUN_ID", "Cancel a run and its launched jobs", func(ctx context.Context, rt *chemflow.Runtime, args []string) (*execution.Snapshot, error) {
		return rt.Cancel(ctx, args[0])
	})
}

func newRetryCmd(app *App) *cobra.Command {
	cmd := snapshotCmd(app, "retry RUN_ID STAGE", "Re-enter a failed stage with its resolved parameters", func(ctx context.Context, rt *chemflow.Runtime, args []string) (*execution.Snapshot, error) {
		return rt.RetryStage(ctx, args[0], args[1])
	})
	cmd.Args = cobra.ExactArgs(2)
	return cmd
}

func newResumeCmd(app *App) *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "resume RUN_ID",
		Short: "Reconcile a persisted run with its hosts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, err := app.Service(ctx)
			if err != nil {
				return err
			}
			snapshot, err := srv.Runtime().Resume(ctx, args[0])
			if err != nil {
				return err
			}
			if !run || snapshot.State.IsTerminal() {
				app.Output().Snapshot(snapshot)
				return nil
			}
			return drive(ctx, srv, args[0], app.Output())
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "drive the run after resuming")
	return cmd
}

func newListCmd(app *App) *cobra.Command {
	var state, workflow string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			var parameters []*dao.Parameter
			if state != "" {
				parameters = append(parameters, dao.NewParameter("State", state))
			}
			if workflow != "" {
				parameters = append(parameters, dao.NewParameter("Workflow", workflow))
			}
			snapshots, err := srv.Runtime().List(cmd.Context(), parameters...)
			if err != nil {
				return err
			}
			app.Output().Snapshots(snapshots)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by run state (running, complete, failed, cancelled)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "filter by workflow name")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete RUN_ID",
		Short: "Delete a run, cancelling it first when still active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			if err = srv.Runtime().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Output().Message("deleted run %s", args[0])
			return nil
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and step running runs in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			srv, err := app.Service(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = srv.Config().API.Addr
			}
			logger := srv.Logger()
			runtime := srv.Runtime()
			handler := api.NewHandler(runtime, srv.Metrics().Handler(), logger)
			server := &http.Server{Addr: addr, Handler: handler.Router(), ReadHeaderTimeout: 10 * time.Second}
			if err = runtime.Start(ctx); err != nil {
				return err
			}
			errs := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errs <- err
				}
				close(errs)
			}()
			select {
			case <-ctx.Done():
			case err = <-errs:
			}
			logger.Info("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Error("shutdown error", "error", shutdownErr)
			}
			if shutdownErr := runtime.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Error("runtime shutdown error", "error", shutdownErr)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, defaults to api.addr")
	return cmd
}

func snapshotCmd(app *App, use, short string, fn func(ctx context.Context, rt *chemflow.Runtime, args []string) (*execution.Snapshot, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			snapshot, err := fn(cmd.Context(), srv.Runtime(), args)
			if err != nil {
				return err
			}
			app.Output().Snapshot(snapshot)
			return nil
		},
	}
}

func drive(ctx context.Context, srv *chemflow.Service, runID string, out *Output) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	snapshot, err := srv.Runtime().Run(ctx, runID)
	if snapshot != nil {
		out.Snapshot(snapshot)
	}
	if err != nil {
		return err
	}
	if snapshot.State != execution.RunStateComplete {
		return errors.New("run " + runID + " " + string(snapshot.State))
	}
	return nil
}
