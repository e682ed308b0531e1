// Package artifact downloads, verifies, and places prebuilt third-party
// artifacts described by configuration entries.
//
// # Pipeline
//
// Each selected entry goes through the same sequence, one entry at a time:
//
//  1. Select: keep entries whose name was asked for and whose platform and
//     architecture match the running host.
//  2. Resolve: turn the entry's target into an absolute path. If it already
//     exists the entry is done; the filesystem is the idempotency marker.
//  3. Fetch: a single GET of the URL, with the body held in memory.
//  4. Verify: SHA-256 of the raw bytes must equal the declared hash, and an
//     optional detached OpenPGP signature must check out.
//  5. Place: a single file is written to the target; an archive (.tar.gz,
//     .tar.xz, .tar.bz2, .zip) is filtered and extracted under it.
//
// # Security Model
//
// The SHA-256 hash in the configuration is the trust anchor. Nothing is
// written before it matches. Archive member paths are joined under the
// target with filepath-securejoin, and members that would land outside the
// target are rejected.
//
// Archives are extracted into a staging directory next to the target and
// renamed into place only after every member was written, so an interrupted
// run never leaves a half-populated target behind.
//
// # Usage
//
//	inst, err := artifact.NewInstaller(artifact.Config{BaseDir: dir, Logger: log})
//	if err != nil {
//	    return err
//	}
//	selected, err := artifact.Select(entries, info, artifact.ParseNames([]string{"embree"}))
//	if err != nil {
//	    return err
//	}
//	results, err := inst.InstallAll(ctx, selected)
package artifact
