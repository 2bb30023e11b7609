// Package engine orchestrates unauthenticated security scans over
// user-registered assets: email addresses, domains, IPv4 addresses, and
// URLs.
//
// The engine accepts a scan over a set of assets, dispatches it to a
// Redis-backed queue (or runs it in-process when no queue is configured),
// runs a fixed catalog of public-information checks per asset type, and
// aggregates the resulting findings into a 0-100 risk score. Scans move
// through a strict lifecycle (queued, running, then completed or failed)
// with progress reported as a percentage that only reaches 100 on
// completion.
//
// Basic usage:
//
//	st := memstore.New()
//	eng, err := engine.New(st,
//		engine.WithLogger(logger),
//		engine.WithQuotaLimit(2),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	a, _ := eng.AddAsset(ctx, ownerID, asset.TypeDomain, "example.com")
//	sc, _ := eng.StartScan(ctx, ownerID, []string{a.ID})
//
//	// Later:
//	sc, _ = eng.GetScan(ctx, ownerID, sc.ID)
//	if sc.Status.IsTerminal() {
//		findings, _ := eng.GetFindings(ctx, ownerID, sc.ID)
//		_ = findings
//	}
//
// Subpackages hold the moving parts: asset, scan, and finding define the
// data model; check implements the probe catalog; score turns findings
// into the risk score; driver executes scans; queue and dispatch route
// them; store (with memstore and gormstore) persists everything; quota
// gates the external breach lookups.
package engine
