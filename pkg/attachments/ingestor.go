// Package attachments summarises and optionally mirrors per-turn uploads
// into local storage.
package attachments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/models"
)

// IngestResult reports what ingest saw and, when downloads are on, how many
// attachments it walked through.
type IngestResult struct {
	Summary         string
	DownloadedCount int
}

// Ingestor counts image vs plain attachments and, when enabled, downloads
// each one below the size cap into storageDir/session/turn/.
type Ingestor struct {
	downloadEnabled bool
	maxBytes        int64
	storageDir      string
	client          *http.Client
}

// NewIngestor builds an ingestor. With downloadEnabled false it only
// produces summaries.
func NewIngestor(downloadEnabled bool, maxBytes int64, storageDir string, timeout time.Duration) *Ingestor {
	return &Ingestor{
		downloadEnabled: downloadEnabled,
		maxBytes:        maxBytes,
		storageDir:      storageDir,
		client:          &http.Client{Timeout: timeout},
	}
}

// Close releases pooled connections.
func (i *Ingestor) Close() {
	i.client.CloseIdleConnections()
}

// Ingest inspects the turn's attachments and returns a localised summary.
// Oversized attachments are skipped silently; transient download failures
// abort the turn with an upstream error.
func (i *Ingestor) Ingest(ctx context.Context, sessionID, turnID string, attachments []models.TurnAttachment) (IngestResult, error) {
	if len(attachments) == 0 {
		return IngestResult{Summary: "첨부파일이 없어요."}, nil
	}

	imageCount := 0
	fileCount := 0
	downloadedCount := 0

	for _, attachment := range attachments {
		if attachment.ContentType != nil && strings.HasPrefix(*attachment.ContentType, "image/") {
			imageCount++
		} else {
			fileCount++
		}

		if i.downloadEnabled {
			if err := i.downloadOne(ctx, sessionID, turnID, attachment); err != nil {
				return IngestResult{}, err
			}
			downloadedCount++
		}
	}

	summary := fmt.Sprintf("첨부파일 %d개를 확인했어요. 이미지 %d개, 일반 파일 %d개예요.", len(attachments), imageCount, fileCount)
	if i.downloadEnabled {
		summary += fmt.Sprintf(" 다운로드는 %d개 완료했어요.", downloadedCount)
	}

	return IngestResult{Summary: summary, DownloadedCount: downloadedCount}, nil
}

func (i *Ingestor) downloadOne(ctx context.Context, sessionID, turnID string, attachment models.TurnAttachment) error {
	if attachment.Size > i.maxBytes {
		return nil
	}

	targetDir := filepath.Join(i.storageDir, sessionID, turnID)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to prepare attachment dir: %w", err)
	}
	targetPath := filepath.Join(targetDir, sanitizeFilename(attachment.Filename))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build attachment request: %w", err)
	}
	response, err := i.client.Do(request)
	if err != nil {
		return domain.NewUpstreamTransient("첨부파일 다운로드 중 네트워크 오류가 발생했어요.").WithCause(err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 500 {
		return domain.NewUpstreamTransient("첨부파일 다운로드 서버 오류가 발생했어요.")
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("attachment download returned status %d", response.StatusCode)
	}

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return domain.NewUpstreamTransient("첨부파일 다운로드 중 네트워크 오류가 발생했어요.").WithCause(err)
	}
	if int64(len(content)) > i.maxBytes {
		return nil
	}
	if err := os.WriteFile(targetPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write attachment: %w", err)
	}
	return nil
}

// sanitizeFilename neutralises path traversal in client-supplied names.
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer("..", "_", "/", "_", "\\", "_")
	return replacer.Replace(filename)
}
