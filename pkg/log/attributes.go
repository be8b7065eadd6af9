package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator or transformer type.
	// Examples: "LinearRegression", "StandardScaler", "LabelEncoder"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package emitting the record.
	// Set by GetLoggerWithName.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase: training, inference, ...
	PhaseKey = "ml.phase"

	// RunIDKey is the UUID assigned to one training run.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	ColumnKey    = "data.column"
	BatchSizeKey = "data.batch_size"

	// ImputedKey and ClippedKey count cells changed by the cleaner.
	ImputedKey = "data.imputed"
	ClippedKey = "data.clipped"
)

// Metrics and timing.
const (
	DurationMsKey = "perf.duration_ms"
	R2ScoreKey    = "metrics.r2_score"
	RMSEKey       = "metrics.rmse"
	MAEKey        = "metrics.mae"
	CVMeanKey     = "metrics.cv_mean"
	CVStdKey      = "metrics.cv_std"
	VerdictKey    = "metrics.verdict"
)

// Prediction context.
const (
	PredsKey      = "preds.count"
	ConfidenceKey = "preds.confidence"
)

// Artifacts, configuration and HTTP.
const (
	ArtifactKey     = "artifact.name"
	PathKey         = "artifact.path"
	RandomSeedKey   = "config.random_seed"
	TestSizeKey     = "config.test_size"
	CVFoldsKey      = "config.cv_folds"
	RequestIDKey    = "http.request_id"
	HTTPMethodKey   = "http.method"
	HTTPPathKey     = "http.path"
	HTTPStatusKey   = "http.status"
	AddrKey         = "http.addr"
	ErrorTypeKey    = "error.type"
	ErrorAttrKey    = "error"
	StacktraceKey   = "stacktrace"
	ModelVersionKey = "model.version"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationClean     = "clean"
	OperationEncode    = "encode"
	OperationSave      = "save"
	OperationLoad      = "load"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
