package domain

// ExtractorMethod selects how page layout is detected.
type ExtractorMethod string

const (
	ExtractorHybrid  ExtractorMethod = "hybrid"
	ExtractorFast    ExtractorMethod = "fast"
	ExtractorOffline ExtractorMethod = "offline"
)

// ValidExtractorMethods is the exhaustive set of extractor methods.
var ValidExtractorMethods = map[ExtractorMethod]bool{
	ExtractorHybrid:  true,
	ExtractorFast:    true,
	ExtractorOffline: true,
}

// InpaintMethod selects how flagged regions are repainted.
type InpaintMethod string

const (
	InpaintHybrid     InpaintMethod = "hybrid"
	InpaintFast       InpaintMethod = "fast"
	InpaintGenerative InpaintMethod = "generative"
	InpaintOffline    InpaintMethod = "offline"
)

// ValidInpaintMethods is the exhaustive set of inpaint methods.
var ValidInpaintMethods = map[InpaintMethod]bool{
	InpaintHybrid:     true,
	InpaintFast:       true,
	InpaintGenerative: true,
	InpaintOffline:    true,
}

// NeedsNetwork reports whether the method reaches a remote model.
func (m InpaintMethod) NeedsNetwork() bool {
	return m == InpaintHybrid || m == InpaintGenerative
}

// TextStyleMode selects how editable text style is inferred.
type TextStyleMode string

const (
	StyleInferredAI     TextStyleMode = "inferred-ai"
	StyleInferredVisual TextStyleMode = "inferred-visual"
	StyleDefault        TextStyleMode = "default"
)

// ValidTextStyleModes is the exhaustive set of style modes.
var ValidTextStyleModes = map[TextStyleMode]bool{
	StyleInferredAI:     true,
	StyleInferredVisual: true,
	StyleDefault:        true,
}

// OutputResolution is a background image size preset.
type OutputResolution string

const (
	ResolutionOriginal OutputResolution = "original"
	Resolution1080p    OutputResolution = "1080p"
	Resolution2K       OutputResolution = "2k"
	Resolution4K       OutputResolution = "4k"
)

// ResolutionLongEdge maps presets to the pixel length of the longer image edge.
// Zero means the source size is kept.
var ResolutionLongEdge = map[OutputResolution]int{
	ResolutionOriginal: 0,
	Resolution1080p:    1920,
	Resolution2K:       2560,
	Resolution4K:       3840,
}

// ImageFormat is the encoding of background images in the artifact.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
)

// ValidImageFormats maps formats to their MIME content type.
var ValidImageFormats = map[ImageFormat]string{
	ImageFormatPNG:  "image/png",
	ImageFormatJPEG: "image/jpeg",
}

// ElementStatus is the keep/erase disposition of one element.
type ElementStatus string

const (
	StatusKeep  ElementStatus = "keep"
	StatusErase ElementStatus = "erase"
)

// ValidElementStatuses is the exhaustive set of dispositions.
var ValidElementStatuses = map[ElementStatus]bool{
	StatusKeep:  true,
	StatusErase: true,
}

// TaskStatus represents the lifecycle of a conversion task.
type TaskStatus string

const (
	TaskPending              TaskStatus = "PENDING"
	TaskProcessing           TaskStatus = "PROCESSING"
	TaskAwaitingVerification TaskStatus = "AWAITING_VERIFICATION"
	TaskCompleted            TaskStatus = "COMPLETED"
	TaskFailed               TaskStatus = "FAILED"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:              {TaskProcessing, TaskFailed},
	TaskProcessing:           {TaskAwaitingVerification, TaskCompleted, TaskFailed},
	TaskAwaitingVerification: {TaskProcessing, TaskFailed},
}

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stage names the pipeline step a page is in or failed at.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageLoad        Stage = "load"
	StageExtract     Stage = "extract"
	StageVerify      Stage = "verify"
	StageReconstruct Stage = "reconstruct"
	StageAssemble    Stage = "assemble"
	StagePackage     Stage = "package"
	StageDone        Stage = "done"
)
