package services

import "github.com/juju/loggo"

var logger = loggo.GetLogger("projmatch.services")
