// Package box reads the folder hierarchy of a public Box shared folder.
//
// Box does not offer an anonymous API for shared folders. Instead, every
// folder page embeds its listing as JSON in an inline script:
//
//	<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder": {"items": [...], "pageCount": 3}};</script>
//
// The package is layered:
//
//  1. ParsePage turns one HTML page into a model.FolderListing
//  2. ListingSource fetches a page by folder id and page number (HTTPSource, CachedSource)
//  3. Paginator walks the pages of a folder
//  4. Navigator resolves root → year → state → composite folders
//
// # Resolving a target
//
//	client := http.NewClient(http.DefaultOptions(), logger)
//	source := box.NewHTTPSource(client, box.DefaultEndpoints(), logger)
//	nav := box.NewNavigator(source, box.DefaultEndpoints().RootFolderID, logger)
//
//	path, err := nav.Resolve(ctx, 2021, "ms", model.FilterAll)
//
// # Walking pages
//
//	pages := box.NewPaginator(source)
//	err := pages.Walk(ctx, folderID, func(listing *model.FolderListing) (bool, error) {
//	    for _, f := range listing.Files() {
//	        fmt.Println(f.Name)
//	    }
//	    return false, nil
//	})
package box
