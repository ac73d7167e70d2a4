package build

// StageName identifies a pipeline stage in reports, logs and metrics.
type StageName string

const (
	StagePrepareOutput StageName = "prepare_output"
	StageSyncSource    StageName = "sync_source"
	StageScanContent   StageName = "scan_content"
	StageRenderPages   StageName = "render_pages"
	StageListings      StageName = "listings"
	StageFeeds         StageName = "feeds"
	StageCopyAssets    StageName = "copy_assets"
	StageVerifyOutput  StageName = "verify_output"
	StagePostProcess   StageName = "post_process"
)

// StageDef couples a stage name with its implementation so the pipeline
// can be assembled per configuration.
type StageDef struct {
	Name StageName
	Fn   Stage
}
