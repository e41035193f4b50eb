// Package password hashes and verifies login passwords with argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification uses the parameters stored in the hash, so raising the cost does not
// lock anyone out; [Argon2.NeedsUpgrade] tells the caller when to re-hash after a
// successful login. [Argon2.VerifyDummy] equalizes timing for unknown accounts.
package password
