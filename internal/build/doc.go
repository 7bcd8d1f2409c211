// Package build registers the site's tasks and their dependency graph.
//
//	clean      remove everything under the destination root
//	styles     compile and post-process the stylesheet
//	scripts    bundle and minify scripts
//	templates  render pages with the global data set
//	images     optimize images through the shared cache
//	assets     styles, scripts, templates and images concurrently
//	default    clean, then the four transforms concurrently
//	watch      serve the destination root and rebuild on change
//	dev        default, then watch
package build
