// Package prompt turns a listing form submission into the instruction sent to
// the generation model.
//
// Compilation is deterministic and has no side effects. Validation is separate
// (ListingRequest.Validate) so callers decide when a request is admissible.
package prompt
