//go:build !windows

package platform

import (
	"github.com/aescanero/launchorch/pkg/domain"
)

// Native is only available on Windows
func Native(clientPrefix string) (*Platform, error) {
	return nil, domain.ErrUnsupportedPlatform
}
