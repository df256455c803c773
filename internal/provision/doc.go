// Package provision turns a demand into a compound worker.
//
// [Provisioner.Provision] picks the first composition whose selector
// matches the demand and, unless the composition is cooling down after a
// recent failure or the worker cap is reached, requests every role's
// members from the backend concurrently. The attempt is all or nothing:
// once every role request has finished, either each role got exactly the
// count it asked for and a worker is assembled, or every member acquired by
// any role is handed back to the backend exactly once and the composition's
// [Cooldown] starts.
//
// Declines never contact the backend, and errors.IsDeclined is true for
// them. No match is a ConfigurationError; cooldown and capacity are
// retryable DeclinedErrors.
//
// Members another compound worker holds are never taken: a backend that
// hands one out fails the attempt with errors.ErrAlreadyOccupied, and
// rollback leaves that member and every host node the attempt did not
// register alone.
package provision
