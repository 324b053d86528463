/*
Package mailbox implements the file-based message store used by the
courier.

A mailbox is a directory tree with provider-sharded message files and
a hidden state area:

	inbound/<provider>/    messages received from a provider
	outbound/<provider>/   drafts awaiting delivery
	archive/<provider>/    processed messages
	.deadletter/<provider> messages that exhausted their retries
	.state/                locks.json and other courier state

Message files are markdown with a YAML frontmatter block; the codec
round-trips types.Message through pkg/frontmatter. `id` and `provider`
are required; `content.text` falls back to the body text. Filenames
are `YYYYMMDDThhmmss_<id>.md` in UTC so directory listings sort
chronologically.

Every write is temp+rename through pkg/atomicfile, so readers never
observe a partial message and a crash mid-write leaves the previous
state intact. Lifecycle moves (archive, deadletter) preserve the
filename and only change the directory.
*/
package mailbox
