package catalog

func brew(pkg string) Strategy {
	return Strategy{Kind: KindBrew, Managers: []ManagerCommands{
		{Manager: "brew", Package: pkg, Commands: [][]string{{"brew", "install", pkg}}},
	}}
}

// linuxNative builds the native strategy for Linux. Managers are probed in
// the listed order; an empty package name skips that manager.
func linuxNative(apt, dnf, pacman, zypper, apk string) Strategy {
	var managers []ManagerCommands
	if apt != "" {
		managers = append(managers, ManagerCommands{Manager: "apt-get", Package: apt, Commands: [][]string{
			{"apt-get", "update"},
			{"apt-get", "install", "-y", apt},
		}})
	}
	if dnf != "" {
		managers = append(managers, ManagerCommands{Manager: "dnf", Package: dnf, Commands: [][]string{
			{"dnf", "install", "-y", dnf},
		}})
	}
	if pacman != "" {
		managers = append(managers, ManagerCommands{Manager: "pacman", Package: pacman, Commands: [][]string{
			{"pacman", "-Sy", "--noconfirm", pacman},
		}})
	}
	if zypper != "" {
		managers = append(managers, ManagerCommands{Manager: "zypper", Package: zypper, Commands: [][]string{
			{"zypper", "--non-interactive", "install", zypper},
		}})
	}
	if apk != "" {
		managers = append(managers, ManagerCommands{Manager: "apk", Package: apk, Commands: [][]string{
			{"apk", "add", apk},
		}})
	}
	return Strategy{Kind: KindNative, Managers: managers}
}

func windowsNative(wingetID, choco, scoop string) Strategy {
	var managers []ManagerCommands
	if wingetID != "" {
		managers = append(managers, ManagerCommands{Manager: "winget", Package: wingetID, Commands: [][]string{
			{"winget", "install", "--id", wingetID, "--exact", "--accept-source-agreements", "--accept-package-agreements"},
		}})
	}
	if choco != "" {
		managers = append(managers, ManagerCommands{Manager: "choco", Package: choco, Commands: [][]string{
			{"choco", "install", choco, "-y"},
		}})
	}
	if scoop != "" {
		managers = append(managers, ManagerCommands{Manager: "scoop", Package: scoop, Commands: [][]string{
			{"scoop", "install", scoop},
		}})
	}
	return Strategy{Kind: KindNative, Managers: managers}
}

func ytDlpRelease(assets map[string][]string) Strategy {
	return Strategy{Kind: KindRelease, Release: &ReleaseSource{
		Repos:  []string{"yt-dlp/yt-dlp"},
		Assets: assets,
	}}
}

var dependencies = map[ID]Dependency{
	YtDlp: {
		ID:          YtDlp,
		Title:       "yt-dlp",
		Executables: []string{"yt-dlp"},
		VersionArgs: []string{"--version"},
		UpdateRepos: []string{"yt-dlp/yt-dlp"},
		strategies: map[string][]Strategy{
			"darwin": {
				brew("yt-dlp"),
				ytDlpRelease(map[string][]string{"": {`^yt-dlp_macos$`}}),
			},
			"linux": {
				brew("yt-dlp"),
				linuxNative("yt-dlp", "yt-dlp", "yt-dlp", "yt-dlp", "yt-dlp"),
				ytDlpRelease(map[string][]string{
					"amd64": {`^yt-dlp_linux$`},
					"arm64": {`^yt-dlp_linux_aarch64$`},
					"arm":   {`^yt-dlp_linux_armv7l$`},
					// The zipapp runs anywhere a python3 interpreter exists.
					"": {`^yt-dlp$`},
				}),
			},
			"windows": {
				windowsNative("yt-dlp.yt-dlp", "yt-dlp", "yt-dlp"),
				ytDlpRelease(map[string][]string{
					"amd64": {`^yt-dlp\.exe$`},
					"386":   {`^yt-dlp_x86\.exe$`},
					"arm64": {`^yt-dlp_arm64\.exe$`, `^yt-dlp\.exe$`},
				}),
			},
		},
		manual: map[string]string{
			"darwin":  "brew install yt-dlp\n# or download https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_macos",
			"linux":   "python3 -m pip install --user -U yt-dlp\n# or download https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux",
			"windows": "winget install --id yt-dlp.yt-dlp --exact\n# or download https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp.exe",
		},
	},
	FFmpeg: {
		ID:          FFmpeg,
		Title:       "FFmpeg",
		Executables: []string{"ffmpeg"},
		VersionArgs: []string{"-version"},
		Companions: []Companion{
			{ID: FFprobe, Executables: []string{"ffprobe"}, VersionArgs: []string{"-version"}},
		},
		strategies: map[string][]Strategy{
			"darwin": {
				brew("ffmpeg"),
			},
			"linux": {
				brew("ffmpeg"),
				linuxNative("ffmpeg", "ffmpeg-free", "ffmpeg", "ffmpeg", "ffmpeg"),
			},
			"windows": {
				windowsNative("Gyan.FFmpeg", "ffmpeg", "ffmpeg"),
				{Kind: KindRelease, Release: &ReleaseSource{
					Repos: []string{"BtbN/FFmpeg-Builds"},
					Assets: map[string][]string{
						"amd64": {`^ffmpeg-master-latest-win64-gpl\.zip$`, `^ffmpeg-n[0-9.]+-latest-win64-gpl-[0-9.]+\.zip$`},
						"arm64": {`^ffmpeg-master-latest-winarm64-gpl\.zip$`},
					},
					Executables: []string{"ffmpeg.exe"},
				}},
			},
		},
		manual: map[string]string{
			"darwin": "/bin/bash -c \"$(curl -fsSL https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh)\"\nbrew install ffmpeg",
			"linux": "# static builds ship as .tar.xz, unpack one manually:\n" +
				"curl -LO https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz\n" +
				"tar -xJf ffmpeg-release-amd64-static.tar.xz\n" +
				"install -m 0755 ffmpeg-*-amd64-static/ffmpeg ffmpeg-*-amd64-static/ffprobe ~/.local/bin/",
			"windows": "winget install --id Gyan.FFmpeg --exact\n# or unzip https://github.com/BtbN/FFmpeg-Builds/releases/latest and add bin\\ to PATH",
		},
	},
	WhisperCpp: {
		ID:          WhisperCpp,
		Title:       "whisper.cpp",
		Executables: []string{"whisper-cli", "whisper-cpp", "whisper", "main"},
		UpdateRepos: []string{"ggml-org/whisper.cpp", "ggerganov/whisper.cpp"},
		strategies: map[string][]Strategy{
			"darwin": {
				brew("whisper-cpp"),
			},
			"linux": {
				brew("whisper-cpp"),
				linuxNative("whisper-cpp", "whisper-cpp", "whisper.cpp", "whisper-cpp", ""),
			},
			"windows": {
				windowsNative("ggerganov.whisper.cpp", "", ""),
				{Kind: KindRelease, Release: &ReleaseSource{
					Repos: []string{"ggml-org/whisper.cpp", "ggerganov/whisper.cpp"},
					Assets: map[string][]string{
						"amd64": {`^whisper-bin-x64\.zip$`, `(?i)^whisper-blas-bin-x64\.zip$`},
						"386":   {`^whisper-bin-Win32\.zip$`},
					},
					Executables: []string{"whisper-cli.exe", "main.exe"},
				}},
			},
		},
		manual: map[string]string{
			"darwin": "brew install whisper-cpp",
			"linux": "git clone https://github.com/ggml-org/whisper.cpp.git\n" +
				"cd whisper.cpp\n" +
				"cmake -B build && cmake --build build -j --config Release\n" +
				"install -m 0755 build/bin/whisper-cli ~/.local/bin/",
			"windows": "download whisper-bin-x64.zip from https://github.com/ggml-org/whisper.cpp/releases/latest and unzip it",
		},
	},
	WhisperModel: {
		ID:    WhisperModel,
		Title: "Whisper model",
		strategies: map[string][]Strategy{
			"darwin":  {{Kind: KindModel}},
			"linux":   {{Kind: KindModel}},
			"windows": {{Kind: KindModel}},
		},
		manual: map[string]string{
			"darwin":  "curl -L -o ggml-base.bin " + DefaultModelBaseURL + "/ggml-base.bin",
			"linux":   "curl -L -o ggml-base.bin " + DefaultModelBaseURL + "/ggml-base.bin",
			"windows": "curl.exe -L -o ggml-base.bin " + DefaultModelBaseURL + "/ggml-base.bin",
		},
	},
	LibreTranslate: {
		ID:          LibreTranslate,
		Title:       "LibreTranslate",
		Executables: []string{"libretranslate"},
		PyPIProject: "libretranslate",
		strategies: map[string][]Strategy{
			"darwin":  {{Kind: KindPipVenv, PipPackage: "libretranslate"}},
			"linux":   {{Kind: KindPipVenv, PipPackage: "libretranslate"}},
			"windows": {{Kind: KindPipVenv, PipPackage: "libretranslate"}},
		},
		manual: map[string]string{
			"darwin":  "brew install python@3.11\npython3 -m venv ~/.subforge/venv && ~/.subforge/venv/bin/pip install libretranslate",
			"linux":   "sudo apt-get install -y python3-venv\npython3 -m venv ~/.subforge/venv && ~/.subforge/venv/bin/pip install libretranslate",
			"windows": "winget install --id Python.Python.3.11 --exact\npy -3 -m venv %USERPROFILE%\\.subforge\\venv && %USERPROFILE%\\.subforge\\venv\\Scripts\\pip install libretranslate",
		},
	},
}
