// Package generate calls the completion API once per requested variant and
// packages the results.
//
// Variants are requested sequentially. The first failed call stops the batch;
// variants already produced are returned together with a *VariantError naming
// the failed index. Empty completions are dropped without stopping the batch.
package generate
