package s3

import (
	"crypto/hmac"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"mediavault/backend"
	"mediavault/checksum"
)

const (
	amzDateTimeFormat = "20060102T150405Z"
	amzDateFormat     = "20060102"
	signingAlgorithm  = "AWS4-HMAC-SHA256"
	unsignedPayload   = "UNSIGNED-PAYLOAD"
	// sha256 of the empty string, for requests without a body.
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func hmacSha256(key []byte, data []byte) []byte {
	h := hmac.New(checksum.NewSha256, key)
	h.Write(data)
	return h.Sum(nil)
}

func getCanonicalURI(req *http.Request) string {
	path := req.URL.Path
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	segments := strings.Split(path, "/")
	var fixedSegments []string
	for _, segment := range segments {
		if segment != "" {
			fixedSegments = append(fixedSegments, url.PathEscape(segment))
		}
	}
	return "/" + strings.Join(fixedSegments, "/")
}

func getCanonicalQueryString(req *http.Request) string {
	queryValues := req.URL.Query()

	if len(queryValues) == 0 {
		return ""
	}
	var canonicalQueryParts []string
	for key, values := range queryValues {
		sort.Strings(values)
		for _, val := range values {
			encodedKey := url.QueryEscape(key)
			encodedVal := url.QueryEscape(val)
			canonicalQueryParts = append(canonicalQueryParts, encodedKey+"="+encodedVal)
		}
	}
	sort.Strings(canonicalQueryParts)
	return strings.Join(canonicalQueryParts, "&")
}

func getCanonicalHeaders(req *http.Request) string {
	canonicalHeaders := make(map[string][]string)

	for name, values := range req.Header {
		lowerName := strings.ToLower(name)
		var processedValues []string

		for _, value := range values {
			trimmedValue := strings.TrimSpace(value)
			singleSpaceValue := strings.Join(strings.Fields(trimmedValue), " ")
			processedValues = append(processedValues, singleSpaceValue)
		}
		sort.Strings(processedValues)
		canonicalHeaders[lowerName] = processedValues
	}

	var sortedHeaderNames []string
	for name := range canonicalHeaders {
		sortedHeaderNames = append(sortedHeaderNames, name)
	}
	sort.Strings(sortedHeaderNames)

	var headerParts []string
	for _, name := range sortedHeaderNames {
		values := canonicalHeaders[name]
		joinedValues := strings.Join(values, ",")
		headerParts = append(headerParts, fmt.Sprintf("%s:%s", name, joinedValues))
	}

	return strings.Join(headerParts, "\n") + "\n"
}

func getSignedHeaders(req *http.Request) string {
	var signedHeaderNames []string
	for name := range req.Header {
		signedHeaderNames = append(signedHeaderNames, strings.ToLower(name))
	}
	sort.Strings(signedHeaderNames)
	return strings.Join(signedHeaderNames, ";")
}

func (s *S3Store) credentialScope(now time.Time) string {
	return fmt.Sprintf("%s/%s/%s/aws4_request", now.Format(amzDateFormat), s.region, "s3")
}

func (s *S3Store) signingKey(now time.Time) []byte {
	dateKey := hmacSha256([]byte("AWS4"+s.secretKey), []byte(now.Format(amzDateFormat)))
	dateRegionKey := hmacSha256(dateKey, []byte(s.region))
	dateRegionServiceKey := hmacSha256(dateRegionKey, []byte("s3"))
	return hmacSha256(dateRegionServiceKey, []byte("aws4_request"))
}

// https://docs.aws.amazon.com/AmazonS3/latest/API/sig-v4-header-based-auth.html
func (s *S3Store) signRequest(req *http.Request, payloadHash string) error {
	now := time.Now().UTC()

	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", now.Format(amzDateTimeFormat))

	signedHeaders := getSignedHeaders(req)
	canonicalReq := fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s",
		req.Method,
		getCanonicalURI(req),
		getCanonicalQueryString(req),
		getCanonicalHeaders(req),
		signedHeaders,
		payloadHash,
	)

	hashedCanonicalRequest := checksum.HexEncodeStr(checksum.Sha256([]byte(canonicalReq)))

	credentialScope := s.credentialScope(now)
	stringToSign := fmt.Sprintf("%s\n%s\n%s\n%s",
		signingAlgorithm,
		now.Format(amzDateTimeFormat),
		credentialScope,
		hashedCanonicalRequest)

	signature := checksum.HexEncodeStr(hmacSha256(s.signingKey(now), []byte(stringToSign)))
	authHeader := fmt.Sprintf("%s Credential=%s/%s,SignedHeaders=%s,Signature=%s",
		signingAlgorithm,
		s.accessKey,
		credentialScope,
		signedHeaders,
		signature)
	req.Header.Set("Authorization", authHeader)
	return nil
}

// https://docs.aws.amazon.com/AmazonS3/latest/API/sigv4-query-string-auth.html
//
// The query-string flavor carries the whole signature in the URL, so the
// link works from a plain browser with no credentials.
func (s *S3Store) presignGet(fileKey string, now time.Time, expiresInSeconds int) (string, error) {
	req, err := http.NewRequest(http.MethodGet, s.objectUrl(fileKey), nil)
	if err != nil {
		return "", fmt.Errorf("s3: could not build presign request for %s: %w", fileKey, err)
	}

	query := url.Values{}
	query.Set("X-Amz-Algorithm", signingAlgorithm)
	query.Set("X-Amz-Credential", fmt.Sprintf("%s/%s", s.accessKey, s.credentialScope(now)))
	query.Set("X-Amz-Date", now.Format(amzDateTimeFormat))
	query.Set("X-Amz-Expires", strconv.Itoa(expiresInSeconds))
	query.Set("X-Amz-SignedHeaders", "host")
	req.URL.RawQuery = query.Encode()

	canonicalReq := fmt.Sprintf("%s\n%s\n%s\nhost:%s\n\nhost\n%s",
		req.Method,
		getCanonicalURI(req),
		getCanonicalQueryString(req),
		s.host,
		unsignedPayload,
	)

	hashedCanonicalRequest := checksum.HexEncodeStr(checksum.Sha256([]byte(canonicalReq)))

	stringToSign := fmt.Sprintf("%s\n%s\n%s\n%s",
		signingAlgorithm,
		now.Format(amzDateTimeFormat),
		s.credentialScope(now),
		hashedCanonicalRequest)

	signature := checksum.HexEncodeStr(hmacSha256(s.signingKey(now), []byte(stringToSign)))
	return fmt.Sprintf("/%s?%s&X-Amz-Signature=%s", escapeKey(fileKey), req.URL.RawQuery, signature), nil
}

// GetShareableUrls presigns a read URL per key against the bucket host.
func (s *S3Store) GetShareableUrls(fileKeys []string, expiresInSeconds int) (backend.URLBundle, error) {
	if expiresInSeconds <= 0 {
		return backend.URLBundle{}, fmt.Errorf("s3: url expiry must be positive")
	}
	now := time.Now().UTC()
	paths := make(map[string]string, len(fileKeys))
	for _, key := range fileKeys {
		path, err := s.presignGet(key, now, expiresInSeconds)
		if err != nil {
			return backend.URLBundle{}, err
		}
		paths[key] = path
	}
	return backend.URLBundle{BaseUrl: s.baseUrl(), Paths: paths}, nil
}
