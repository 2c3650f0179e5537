package export

import "context"

// RunServerSidePDFDownload asks the injected downloader for a server-rendered
// PDF of the named notebook. The request shape is fixed: webpdf mode with
// editable inputs excluded, rasterized outputs at the default scale, and the
// live raster server. Only the filename and preset vary with caller input.
//
// The downloader's error is returned unchanged; no retries or recovery
// happen here.
func RunServerSidePDFDownload(ctx context.Context, filename string, preset PDFPreset, downloadPDF PDFDownloader) error {
	if downloadPDF == nil {
		return NewError(KindValidation, "pdf downloader is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req := ExportAsPDFRequest{
		Filename:         filename,
		WebPDF:           true,
		Preset:           preset,
		IncludeInputs:    false,
		RasterizeOutputs: true,
		RasterScale:      DefaultRasterScale,
		RasterServer:     RasterServerLive,
	}
	return downloadPDF.DownloadPDF(ctx, req)
}
