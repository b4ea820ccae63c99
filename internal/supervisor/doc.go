// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package supervisor runs the long-lived parts of the server under a suture v4
supervisor tree.

The tree has two layers so a crash in one never stops the other:

	consensus (root)
	├── data-layer   cache janitor (memory sweep, badger value log GC)
	└── api-layer    HTTP server

Suture restarts a failed service with backoff once FailureThreshold is
exceeded within FailureDecay. Supervisor events are logged through
sutureslog, bridged onto zerolog by logging.NewSlogLogger.

Example:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewCacheJanitorService(store, badgerTier, time.Minute, 10*time.Minute))
	tree.AddAPIService(services.NewHTTPServerService(srv, 15*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
