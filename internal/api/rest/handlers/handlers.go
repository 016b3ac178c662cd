package handlers

import "github.com/juju/loggo"

var logger = loggo.GetLogger("projmatch.api.handlers")
