package styles

import ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"

func fsError(err error, msg, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, msg).
		WithPath(path).
		Build()
}
