package main

import "cmsapi/internal/app"

// @title                       CMS API
// @version                     1.0
// @description                 Accounts, posts, categories and file gallery.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	app.Run()
}
