package webdav

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediavault/backend"
)

// Recursive listings walk one collection at a time; servers commonly
// refuse Depth: infinity.
const maxListDepth = 5

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:displayname/>
    <D:getcontentlength/>
    <D:getlastmodified/>
    <D:resourcetype/>
  </D:prop>
</D:propfind>`

type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href     string        `xml:"href"`
	Propstat []davPropstat `xml:"propstat"`
}

type davPropstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	DisplayName   string          `xml:"displayname"`
	ContentLength string          `xml:"getcontentlength"`
	LastModified  string          `xml:"getlastmodified"`
	ResourceType  davResourceType `xml:"resourcetype"`
}

type davResourceType struct {
	Collection *struct{} `xml:"collection"`
}

func (w *WebdavStore) ListObjects(ctx context.Context, dirPath string, recursive bool) ([]backend.ObjectInfo, error) {
	if recursive {
		return w.listRecursive(ctx, dirPath, 0)
	}
	return w.listDirectory(ctx, dirPath)
}

func (w *WebdavStore) listRecursive(ctx context.Context, dirPath string, depth int) ([]backend.ObjectInfo, error) {
	if depth >= maxListDepth {
		return nil, nil
	}
	infos, err := w.listDirectory(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	results := infos
	for _, info := range infos {
		if !info.IsDir {
			continue
		}
		children, err := w.listRecursive(ctx, info.Path, depth+1)
		if err != nil {
			return nil, err
		}
		results = append(results, children...)
	}
	return results, nil
}

func (w *WebdavStore) listDirectory(ctx context.Context, dirPath string) ([]backend.ObjectInfo, error) {
	dirPath = strings.Trim(dirPath, "/")
	listUrl := w.baseUrl + "/"
	if dirPath != "" {
		listUrl = fmt.Sprintf("%s/%s/", w.baseUrl, dirPath)
	}
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", listUrl, strings.NewReader(propfindBody))
	if err != nil {
		return nil, fmt.Errorf("webdav: could not build PROPFIND request for %s: %w", dirPath, err)
	}
	req.Header.Set("Depth", "1")
	req.Header.Set("Content-Type", "application/xml")
	resp, err := w.do(req)
	if err != nil {
		return nil, fmt.Errorf("webdav: could not list %s: %w", dirPath, err)
	}
	defer drainAndClose(resp)
	if resp.StatusCode != http.StatusMultiStatus {
		return nil, fmt.Errorf("webdav: could not list %s: status %d", dirPath, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webdav: could not read listing of %s: %w", dirPath, err)
	}

	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("webdav: malformed multistatus for %s: %w", dirPath, err)
	}

	var infos []backend.ObjectInfo
	for i := range ms.Responses {
		info, ok, err := w.toObjectInfo(&ms.Responses[i], dirPath)
		if err != nil {
			return nil, err
		}
		if ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (w *WebdavStore) toObjectInfo(resp *davResponse, dirPath string) (backend.ObjectInfo, bool, error) {
	hrefPath := resp.Href
	if strings.Contains(hrefPath, "://") {
		parsed, err := url.Parse(hrefPath)
		if err != nil {
			return backend.ObjectInfo{}, false, fmt.Errorf("webdav: malformed href %q: %w", resp.Href, err)
		}
		hrefPath = parsed.Path
	}
	unescaped, err := url.PathUnescape(hrefPath)
	if err != nil {
		return backend.ObjectInfo{}, false, fmt.Errorf("webdav: malformed href %q: %w", resp.Href, err)
	}
	relative := strings.Trim(strings.TrimPrefix(unescaped, w.basePath), "/")
	if relative == dirPath {
		// the listed collection itself
		return backend.ObjectInfo{}, false, nil
	}

	var prop *davProp
	for i := range resp.Propstat {
		if strings.Contains(resp.Propstat[i].Status, "200") {
			prop = &resp.Propstat[i].Prop
			break
		}
	}
	if prop == nil {
		return backend.ObjectInfo{}, false, nil
	}

	isDir := prop.ResourceType.Collection != nil
	name := prop.DisplayName
	if name == "" {
		name = relative
		if idx := strings.LastIndex(relative, "/"); idx >= 0 {
			name = relative[idx+1:]
		}
	}
	var size int64
	if !isDir && prop.ContentLength != "" {
		size, err = strconv.ParseInt(prop.ContentLength, 10, 64)
		if err != nil {
			return backend.ObjectInfo{}, false, fmt.Errorf("webdav: malformed content length %q for %s: %w", prop.ContentLength, relative, err)
		}
	}
	var modified time.Time
	if prop.LastModified != "" {
		modified, err = http.ParseTime(prop.LastModified)
		if err != nil {
			return backend.ObjectInfo{}, false, fmt.Errorf("webdav: malformed modification time %q for %s: %w", prop.LastModified, relative, err)
		}
	}
	return backend.ObjectInfo{
		Name:       name,
		Path:       relative,
		SizeBytes:  size,
		ModifiedAt: modified,
		IsDir:      isDir,
	}, true, nil
}
