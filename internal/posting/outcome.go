package posting

// IngestDisposition enumerates the possible results of submitting a raw
// posting to the persistence gate.
type IngestDisposition string

// Dispositions returned by the gate.
const (
	Accepted         IngestDisposition = "accepted"
	DuplicateSkipped IngestDisposition = "duplicate_skipped"
	Rejected         IngestDisposition = "rejected"
)

// IngestOutcome is the result of one gate submission. Reason is set only for
// rejected postings. Posting is set only for accepted ones, so the crawl
// controller can read the normalized date without re-parsing.
type IngestOutcome struct {
	Disposition IngestDisposition
	Reason      string
	Posting     *Posting
}
