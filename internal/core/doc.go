// Package core provides the business logic for onboarding a dosimetry client.
//
// This package contains all domain logic independent of any UI or transport
// layer. It is used by the web handlers, the rostercheck CLI and tests
// without modification.
//
// # Data
//
// A [Session] holds one [ClientRecord], its [FacilityRecord] list ("sedes")
// and a [Roster] of [UserRecord] entries. Sessions are stored between
// requests by a [SessionStore]; a submitted session is closed and every
// mutation fails with [ErrSessionSubmitted].
//
// # Roster Import
//
// [ImportRoster] validates spreadsheet rows one by one. A bad row never
// aborts the batch: it becomes a [Rejection] with its sheet row number and a
// reason, and the remaining rows are still imported. Behaviors that differed
// between the historical versions of the form are explicit in [Policy]:
//
//   - Duplicates: strict rejects repeated documents, relaxed allows them
//   - Locations: joined keeps one record, exploded emits one per location
//   - BlankLocation: allow imports an empty location, reject refuses the row
//   - FacilityCollision: reject a facility whose name is taken, or merge it
//     into the existing one
//
// # Submission
//
// [Service.Submit] re-validates everything, stores the dataset through a
// [Persister] in one transaction keyed by the session id, then notifies
// through a [Notifier] and optionally archives a snapshot through an
// [Archiver]. Only a storage failure fails the submission.
//
// # Error Handling
//
// Technical errors are mapped to operator messages with support codes using
// [MapError]. Pre-submission problems are returned as [*ValidationIssue]
// with the roster row and field to fix.
package core
