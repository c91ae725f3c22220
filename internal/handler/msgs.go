package handler

import "github.com/pechorka/quire/internal/importer"

// import status messages
var stateMsgIds = map[importer.State]string{
	importer.StateIdle:             "import_idle",
	importer.StateOpeningFile:      "import_opening_file",
	importer.StateParsingZip:       "import_parsing_zip",
	importer.StateReadingContainer: "import_reading_container",
	importer.StateReadingOpf:       "import_reading_opf",
	importer.StateOpeningDB:        "import_opening_db",
	importer.StateDecompressing:    "import_decompressing",
	importer.StateStoring:          "import_storing",
	importer.StateDone:             "import_done",
	importer.StateError:            "import_error",
}

const fallbackMsg = "Something went wrong"
