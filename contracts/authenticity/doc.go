/*
Package authenticity implements ContentAuthenticity contract which keeps
records of registered media content.

Every registration is submitted by some account and carries the account's
registration nonce. The contract accepts only the nonce it expects next from
the account, so each registration is applied exactly once and registrations
of a single account are totally ordered. The same content may be registered
any number of times, the latest registration is returned by getRecord.

# Contract notifications

Registered notification. It is emitted on every accepted registration.

	Registered:
	  - name: fingerprint
	    type: ByteArray
	  - name: submitter
	    type: Hash160
	  - name: nonce
	    type: Integer
*/
package authenticity

/*
Contract storage model.

Current conventions:
 <fingerprint>: 32-byte SHA-256 digest of the content
 <account>: 20-byte script hash of the submitter

# Summary
Key-value storage format:
 - 'n' + <account> -> int
   next registration nonce expected from the account
 - 'r' + <fingerprint> -> std.Serialize(Record)
   latest registration of the content
 - 'c' + <fingerprint> -> int
   number of registrations of the content
*/
