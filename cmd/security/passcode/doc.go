// Package passcode hashes and verifies the admin override code.
//
// Operators may configure the override as an Argon2id hash instead of a
// plaintext secret. Hashes use the PHC-style encoding:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Hash strings come from configuration and are still decoded strictly:
// parameters far above the configured cost are refused.
package passcode
