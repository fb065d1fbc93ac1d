package port

import "context"

// VideoGenerator produces one transformed video per source, reusing a
// single reference image across a run.
type VideoGenerator interface {
	// ResolveEndpoint picks the remote endpoint used for every Generate
	// call of a run. It is resolved once, before the first item.
	ResolveEndpoint(ctx context.Context) (string, error)

	// Generate invokes the endpoint and returns the local path of the
	// produced artifact, placed under outDir. Retry handling lives
	// inside the implementation; a returned error is final.
	Generate(ctx context.Context, endpoint, imagePath, videoPath, outDir string) (string, error)
}
