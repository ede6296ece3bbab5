package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Provider string

func (p *Provider) String() string {
	switch *p {
	case PROVIDER_WEBDAV:
		return "webdav"
	case PROVIDER_S3:
		return "s3"
	case PROVIDER_MEMORY:
		return "memory"
	default:
		return "Unknown"
	}
}

const (
	PROVIDER_WEBDAV Provider = "webdav"
	PROVIDER_S3     Provider = "s3"
	PROVIDER_MEMORY Provider = "memory"
)

func ParseProvider(providerStr string) (Provider, error) {
	p := Provider(strings.ToLower(providerStr))
	switch p {
	case PROVIDER_WEBDAV, PROVIDER_S3, PROVIDER_MEMORY:
		return p, nil
	default:
		return "", fmt.Errorf("invalid provider: %s", providerStr)
	}
}

func (provider *Provider) UnmarshalJSON(data []byte) error {
	var maybeProvider string
	err := json.Unmarshal(data, &maybeProvider)
	if err != nil {
		return err
	}
	p := Provider(maybeProvider)
	switch p {
	case PROVIDER_WEBDAV, PROVIDER_S3, PROVIDER_MEMORY:
		{
			*provider = p
			return nil
		}
	default:
		return fmt.Errorf("unknown provider: %s. supported providers are: %s, %s, %s",
			maybeProvider, PROVIDER_WEBDAV, PROVIDER_S3, PROVIDER_MEMORY)
	}
}
