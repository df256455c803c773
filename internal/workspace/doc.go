// Package workspace allocates per-job working directories on members.
//
// A job's workspace on a member lives under the member's workspace base
// directory (see config.WorkspaceConfig) and is named after the job. When
// the same path is already leased by a concurrent dispatch, the lease gets
// a suffixed path instead: path@2, path@3, and so on.
package workspace
