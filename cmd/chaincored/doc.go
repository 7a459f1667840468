/*
Copyright (c) 2013-2018 The btcsuite developers
Copyright (c) 2015-2016 The Decred developers
Copyright (c) 2013-2014 Conformal Systems LLC.
Use of this source code is governed by an ISC
license that can be found in the LICENSE file.

Chaincored runs the header-chain consensus core: it keeps the headers tree,
validates incoming headers and schedules block downloads from the registered
fetchers.

Usage:

	chaincored [OPTIONS]

For an up-to-date help message:

	chaincored --help

The long form of all option flags (except -C) can be specified in a configuration
file that is automatically parsed when chaincored starts up. By default, the
configuration file is located at ~/.chaincore/chaincore.conf on POSIX-style operating
systems and %LOCALAPPDATA%\chaincore\chaincore.conf on Windows. The -C (--configfile)
flag can be used to override this location.
*/
package main
