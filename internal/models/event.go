package models

import "fmt"

// Stage identifies which engine hook produced an [Event].
type Stage string

const (
	StageDownload      Stage = "downloading"
	StagePostprocessor Stage = "postprocessor"
)

// EventStatus is the engine-reported status within a stage.
type EventStatus string

const (
	EventDownloading EventStatus = "downloading"
	EventFinished    EventStatus = "finished"
	EventError       EventStatus = "error"
	EventStarted     EventStatus = "started"
	EventProcessing  EventStatus = "processing"
)

// Postprocessor names reported by the engine.
const (
	PostprocessorExtractAudio = "ExtractAudio"
	PostprocessorMoveFiles    = "MoveFiles"
)

// EventInfo carries the video fields of an [Event].
type EventInfo struct {
	ExternalVideoID string `json:"external_video_id"`
	Title           string `json:"title,omitempty"`
	DownloadedBytes int64  `json:"downloaded_bytes,omitempty"`
	TotalBytes      int64  `json:"total_bytes,omitempty"` // zero when unknown
	FinalPath       string `json:"final_path,omitempty"`
}

// Event is one notification from the download engine.
type Event struct {
	Stage         Stage       `json:"stage"`
	Status        EventStatus `json:"status"`
	Postprocessor string      `json:"postprocessor,omitempty"`
	Info          EventInfo   `json:"info"`
}

func (e Event) String() string {
	if e.Stage == StagePostprocessor {
		return fmt.Sprintf("%s/%s/%s video=%s", e.Stage, e.Postprocessor, e.Status, e.Info.ExternalVideoID)
	}
	return fmt.Sprintf("%s/%s video=%s", e.Stage, e.Status, e.Info.ExternalVideoID)
}

// DownloadProgressEvent builds a downloading/downloading event.
func DownloadProgressEvent(externalID string, downloaded, total int64) Event {
	return Event{
		Stage:  StageDownload,
		Status: EventDownloading,
		Info:   EventInfo{ExternalVideoID: externalID, DownloadedBytes: downloaded, TotalBytes: total},
	}
}

// DownloadEvent builds a download stage event with the given status.
func DownloadEvent(externalID string, status EventStatus) Event {
	return Event{Stage: StageDownload, Status: status, Info: EventInfo{ExternalVideoID: externalID}}
}

// PostprocessorEvent builds a postprocessor stage event.
func PostprocessorEvent(externalID, postprocessor string, status EventStatus) Event {
	return Event{
		Stage:         StagePostprocessor,
		Status:        status,
		Postprocessor: postprocessor,
		Info:          EventInfo{ExternalVideoID: externalID},
	}
}

// MoveFinishedEvent builds the event announcing the final placement of the output file.
func MoveFinishedEvent(externalID, finalPath string) Event {
	ev := PostprocessorEvent(externalID, PostprocessorMoveFiles, EventFinished)
	ev.Info.FinalPath = finalPath
	return ev
}
