package reconstruct

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanbriolat/connect-archiver/generic"
	"github.com/alanbriolat/connect-archiver/provider/connect"
)

type State string

const (
	StateResolving        State = "resolving"
	StateLocating         State = "locating"
	StateFetching         State = "fetching"
	StateExtracting       State = "extracting"
	StateClassifying      State = "classifying"
	StateNormalizingVideo State = "normalizing_video"
	StateNormalizingAudio State = "normalizing_audio"
	StateMerging          State = "merging"
	StatePlacing          State = "placing"
	StatePublishing       State = "publishing"
	StateDone             State = "done"
	StateFailed           State = "failed"
	StateSkippedExisting  State = "skipped_existing"
)

var terminalStates = generic.NewSet(StateDone, StateFailed, StateSkippedExisting)

func (s State) IsTerminal() bool {
	return terminalStates.Contains(s)
}

type JobID string

func NewJobID() JobID {
	return JobID(generic.Unwrap(uuid.NewRandom()).String())
}

// JobRequest is one line of work: a recording URL and an optional output file name.
type JobRequest struct {
	URL        string
	OutputName string
}

// Job tracks the reconstruction of one recording URL from start to finish.
type Job struct {
	ID         JobID
	URL        string
	OutputName string
	Identifier connect.Identifier
	// WorkDir holds the archive, the extracted fragments and all intermediate files. It is removed when the job
	// ends, whatever the outcome.
	WorkDir     string
	ArchivePath string
	// SourceURL is the candidate URL the archive was downloaded from, empty if a previous archive was reused.
	SourceURL   string
	TempOutput  string
	Destination string
	// PublishedTo is where the output was copied by the publisher, if any.
	PublishedTo string
	State       State
	Err         error `diff:"-"`
	Started     time.Time
	Finished    time.Time `diff:"-"`
}

func (j *Job) Succeeded() bool {
	return j.State == StateDone || j.State == StateSkippedExisting
}

// JobRecord is what the History keeps about the last job for each URL.
type JobRecord struct {
	JobID          JobID                  `json:"job_id"`
	URL            string                 `json:"url"`
	RecordingID    string                 `json:"recording_id,omitempty"`
	IdentifierKind connect.IdentifierKind `json:"identifier_kind,omitempty"`
	SourceURL      string                 `json:"source_url,omitempty"`
	Destination    string                 `json:"destination,omitempty"`
	PublishedTo    string                 `json:"published_to,omitempty"`
	State          State                  `json:"state"`
	Error          string                 `json:"error,omitempty"`
	Started        time.Time              `json:"started"`
	Finished       time.Time              `json:"finished"`
}

func (j *Job) Record() *JobRecord {
	record := &JobRecord{
		JobID:          j.ID,
		URL:            j.URL,
		RecordingID:    j.Identifier.Value,
		IdentifierKind: j.Identifier.Kind,
		SourceURL:      j.SourceURL,
		Destination:    j.Destination,
		PublishedTo:    j.PublishedTo,
		State:          j.State,
		Started:        j.Started,
		Finished:       j.Finished,
	}
	if j.Err != nil {
		record.Error = j.Err.Error()
	}
	return record
}

// History remembers the outcome of previous jobs so a completed recording isn't fetched again.
type History interface {
	// GetRecord returns the last record for url, or (nil, nil) if there isn't one.
	GetRecord(url string) (*JobRecord, error)
	PutRecord(record *JobRecord) error
}

// NopHistory remembers nothing.
type NopHistory struct{}

func (NopHistory) GetRecord(string) (*JobRecord, error) { return nil, nil }
func (NopHistory) PutRecord(*JobRecord) error { return nil }
