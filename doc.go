// Package chemflow orchestrates multi-stage computational-chemistry workflows.
//
// A workflow is a graph of stages; each stage becomes an engine job
// (NWChem, GPAW, Octopus or a shell script) dispatched to the local machine or
// a remote batch host. Runs are persisted after every transition so they can
// be resumed without re-running finished stages.
//
// End-users interact with the engine via the Service facade:
//
//	srv, _ := chemflow.New(ctx, chemflow.WithConfig(cfg))
//	rt := srv.Runtime()
//	wf, _ := rt.LoadWorkflow(ctx, "h2o.yaml")
//	run, _ := rt.Submit(ctx, wf, nil)
//	snapshot, _ := rt.Run(ctx, run.ID)
package chemflow
