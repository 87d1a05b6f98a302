package help

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

func HomeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	// Windows fallback
	if h := os.Getenv("USERPROFILE"); h != "" {
		return h
	}
	return "." // last resort: current dir
}

// DefaultKubeconfig honors $KUBECONFIG (first entry) before ~/.kube/config.
func DefaultKubeconfig() string {
	if env := os.Getenv("KUBECONFIG"); env != "" {
		if first := strings.Split(env, string(os.PathListSeparator))[0]; first != "" {
			return first
		}
	}
	return filepath.Join(HomeDir(), ".kube", "config")
}
